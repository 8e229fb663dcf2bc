package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail            `json:"error"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// asDefinition 沿错误链查找业务错误
func asDefinition(err error) (errors.Definition, bool) {
	var def errors.Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	var defPtr *errors.Definition
	if stderrors.As(err, &defPtr) && defPtr != nil {
		return *defPtr, true
	}
	return errors.Definition{}, false
}

// StatusOf 返回错误对应的 HTTP 状态码
func StatusOf(err error) int {
	def, ok := asDefinition(err)
	if !ok {
		return http.StatusInternalServerError
	}

	// 根据错误码映射 HTTP 状态码
	switch def.Code {
	case errors.TooManyRequests.Code:
		return http.StatusTooManyRequests // 429
	case errors.InvalidPayload.Code, errors.InvalidQuery.Code,
		errors.InvalidUserID.Code, errors.InvalidContactID.Code:
		return http.StatusBadRequest // 400
	case errors.Unauthorized.Code:
		return http.StatusUnauthorized // 401
	case errors.ErrUserNotFound.Code, errors.ContactNotFound.Code:
		return http.StatusNotFound // 404
	case errors.ContactConflict.Code:
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError // 500
	}
}

func meta(ctx context.Context) map[string]interface{} {
	if id := logger.RequestID(ctx); id != "" {
		return map[string]interface{}{"request_id": id}
	}
	return nil
}

// Error 返回错误响应，未分类的错误统一隐藏为 INTERNAL_ERROR
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	statusCode := StatusOf(err)

	var code, message string
	if def, ok := asDefinition(err); ok {
		code = def.Code
		message = def.Message
	} else {
		code = errors.InternalError.Code
		message = errors.InternalError.Message
	}

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: meta(ctx),
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta(ctx),
	})
}

// Created 返回 201
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
		Meta: meta(ctx),
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidPayload.Code,
			Message: errors.InvalidPayload.Message,
			Details: map[string]interface{}{"error": err.Error()},
		},
		Meta: meta(ctx),
	})
}

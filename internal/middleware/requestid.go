package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"ContactBook/pkg/logger"
	"ContactBook/pkg/snowflake"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware 沿用上游传入的请求 ID，没有时用 snowflake 生成，并写回响应头
func RequestIDMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		requestID := string(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = newRequestID()
		}

		c.Header(RequestIDHeader, requestID)
		c.Next(logger.WithRequestID(ctx, requestID))
	}
}

// newRequestID snowflake 未初始化时（测试、工具命令）退回 UUID
func newRequestID() string {
	if id, err := snowflake.NextString(); err == nil {
		return id
	}
	return uuid.NewString()
}

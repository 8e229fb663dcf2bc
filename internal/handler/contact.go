package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"ContactBook/internal/middleware"
	"ContactBook/internal/model"
	"ContactBook/internal/model/dto"
	"ContactBook/internal/repository"
	"ContactBook/internal/service"
	"ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/response"
)

// ContactUseCase handler 依赖的联系人业务接口，由 *service.ContactService 实现
type ContactUseCase interface {
	Create(ctx context.Context, ownerID string, req dto.ContactRequest) (*model.Contact, error)
	Get(ctx context.Context, ownerID, id string) (*model.Contact, error)
	Update(ctx context.Context, ownerID, id string, req dto.ContactRequest) (*model.Contact, error)
	Delete(ctx context.Context, ownerID, id string) (*model.Contact, error)
	List(ctx context.Context, ownerID string, order repository.Order) ([]*model.Contact, error)
	SearchByLetter(ctx context.Context, ownerID, letter string, order repository.Order) ([]*model.Contact, error)
	SearchByName(ctx context.Context, ownerID, name string, order repository.Order) ([]*model.Contact, error)
	Next(ctx context.Context, ownerID, currentID string) (service.NavigationResult, error)
	SkipToNextLetter(ctx context.Context, ownerID, currentID string) (service.NavigationResult, error)
}

type ContactHandler struct {
	contacts ContactUseCase
}

func NewContactHandler(contacts ContactUseCase) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// CreateContact 新建联系人
// POST /v1/contacts?userId=
func (h *ContactHandler) CreateContact(ctx context.Context, c *app.RequestContext) {
	var req dto.ContactRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	contact, err := h.contacts.Create(ctx, c.Query("userId"), req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Created(ctx, c, dto.NewContactItem(contact))
}

// GetContact 按 ID 读取联系人，归属取自 token
// GET /v1/contacts/:id
func (h *ContactHandler) GetContact(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	contact, err := h.contacts.Get(ctx, userID, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Success(ctx, c, dto.NewContactItem(contact))
}

// UpdateContact 整体覆盖联系人
// PUT /v1/contacts/:id?userId=
func (h *ContactHandler) UpdateContact(ctx context.Context, c *app.RequestContext) {
	var req dto.ContactRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	contact, err := h.contacts.Update(ctx, c.Query("userId"), c.Param("id"), req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Success(ctx, c, dto.NewContactItem(contact))
}

// DeleteContact 删除联系人并返回被删除的记录
// DELETE /v1/contacts/:id?userId=
func (h *ContactHandler) DeleteContact(ctx context.Context, c *app.RequestContext) {
	contact, err := h.contacts.Delete(ctx, c.Query("userId"), c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Success(ctx, c, dto.NewContactItem(contact))
}

// ListContacts 列出用户的全部联系人
// GET /v1/contacts?userId=&order=
func (h *ContactHandler) ListContacts(ctx context.Context, c *app.RequestContext) {
	query, order, ok := bindListQuery(ctx, c)
	if !ok {
		return
	}

	contacts, err := h.contacts.List(ctx, query.UserID, order)
	writeList(ctx, c, contacts, err)
}

// SearchByLetter 名字首字母搜索
// GET /v1/contacts/search/letter?userId=&letter=
func (h *ContactHandler) SearchByLetter(ctx context.Context, c *app.RequestContext) {
	query, order, ok := bindListQuery(ctx, c)
	if !ok {
		return
	}

	contacts, err := h.contacts.SearchByLetter(ctx, query.UserID, query.Letter, order)
	writeList(ctx, c, contacts, err)
}

// SearchByName 名字子串搜索
// GET /v1/contacts/search/name?userId=&name=
func (h *ContactHandler) SearchByName(ctx context.Context, c *app.RequestContext) {
	query, order, ok := bindListQuery(ctx, c)
	if !ok {
		return
	}

	contacts, err := h.contacts.SearchByName(ctx, query.UserID, query.Name, order)
	writeList(ctx, c, contacts, err)
}

// NextContact 按创建时间的下一个联系人
// GET /v1/contacts/next/:currentContactId?userId=
func (h *ContactHandler) NextContact(ctx context.Context, c *app.RequestContext) {
	result, err := h.contacts.Next(ctx, c.Query("userId"), c.Param("currentContactId"))
	writeNavigation(ctx, c, result, err)
}

// SkipToNextLetter 同首字母分组内按名字的下一个联系人
// GET /v1/contacts/skip/:currentContactId?userId=
func (h *ContactHandler) SkipToNextLetter(ctx context.Context, c *app.RequestContext) {
	result, err := h.contacts.SkipToNextLetter(ctx, c.Query("userId"), c.Param("currentContactId"))
	writeNavigation(ctx, c, result, err)
}

func bindListQuery(ctx context.Context, c *app.RequestContext) (dto.ContactQuery, repository.Order, bool) {
	var query dto.ContactQuery
	if err := c.BindQuery(&query); err != nil {
		response.Error(ctx, c, errors.InvalidQuery.WithMessage(err.Error()))
		return query, repository.OrderNone, false
	}

	order, err := repository.ParseOrder(query.Order)
	if err != nil {
		response.Error(ctx, c, errors.InvalidQuery.WithMessage(err.Error()))
		return query, repository.OrderNone, false
	}
	return query, order, true
}

func writeList(ctx context.Context, c *app.RequestContext, contacts []*model.Contact, err error) {
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Success(ctx, c, dto.NewContactList(contacts))
}

func writeNavigation(ctx context.Context, c *app.RequestContext, result service.NavigationResult, err error) {
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Success(ctx, c, dto.NavigationResponse{
		Contact: dto.NewContactItem(result.Contact),
		Message: result.Message,
	})
}

// writeError 业务错误直接返回，未分类错误记录日志后统一返回 500
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	if response.StatusOf(err) >= 500 {
		_ = c.Error(err)
		logger.Ctx(ctx).Error("Contact request failed",
			zap.String("method", string(c.Method())),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(ctx, c, err)
}

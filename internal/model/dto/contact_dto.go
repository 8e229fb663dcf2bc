package dto

import (
	"time"

	"ContactBook/internal/model"
)

// ========== Contact 相关 DTO ==========

// ContactRequest 创建/更新联系人请求，PUT 为整体覆盖
type ContactRequest struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone string  `json:"phone"`
	Notes string  `json:"notes"`
}

// Fields 转换为存储层字段
func (r ContactRequest) Fields() model.ContactFields {
	return model.ContactFields{
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
		Notes: r.Notes,
	}
}

// ContactItem 联系人响应项
type ContactItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Phone     string    `json:"phone"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewContactItem 从模型构造响应项
func NewContactItem(c *model.Contact) *ContactItem {
	if c == nil {
		return nil
	}
	return &ContactItem{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewContactList 构造列表响应，空结果返回 [] 而不是 null
func NewContactList(contacts []*model.Contact) []*ContactItem {
	items := make([]*ContactItem, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, NewContactItem(c))
	}
	return items
}

// ContactQuery 列表和搜索的查询参数
type ContactQuery struct {
	UserID string `query:"userId"`
	Letter string `query:"letter"`
	Name   string `query:"name"`
	Order  string `query:"order"`
}

// NavigationResponse 导航结果，没有结果时 contact 为 null
type NavigationResponse struct {
	Contact *ContactItem `json:"contact"`
	Message string       `json:"message"`
}

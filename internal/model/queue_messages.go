package model

// ContactEventType 联系人变更事件类型，同时作为 routing key
type ContactEventType string

const (
	ContactEventCreated ContactEventType = "contact.created"
	ContactEventUpdated ContactEventType = "contact.updated"
	ContactEventDeleted ContactEventType = "contact.deleted"
)

// ContactEventMessage 联系人变更消息
type ContactEventMessage struct {
	MessageID  string           `json:"message_id"` // 消息唯一ID，用于幂等性检查
	Type       ContactEventType `json:"type"`
	ContactID  string           `json:"contact_id"`
	UserID     string           `json:"user_id"`
	Contact    *Contact         `json:"contact,omitempty"` // 删除事件也带上被删除的快照
	OccurredAt string           `json:"occurred_at"`
}

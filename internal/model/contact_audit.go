package model

import "time"

// ContactAudit 联系人变更审计记录，由 worker 消费 contact.* 事件写入
type ContactAudit struct {
	ID         int64            `gorm:"primaryKey;autoIncrement:false" json:"id"` // snowflake
	MessageID  string           `gorm:"type:varchar(32);not null;uniqueIndex" json:"message_id"`
	Type       ContactEventType `gorm:"type:varchar(32);not null" json:"type"`
	ContactID  string           `gorm:"type:varchar(36);not null;index" json:"contact_id"`
	UserID     string           `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Snapshot   string           `gorm:"type:text;not null;default:''" json:"snapshot"` // 事件中的联系人 JSON
	OccurredAt time.Time        `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
}

// TableName 指定表名
func (ContactAudit) TableName() string {
	return "contact_audits"
}

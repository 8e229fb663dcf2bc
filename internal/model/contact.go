package model

import "time"

// Contact 通讯录联系人，归属于唯一的 user
type Contact struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID string `gorm:"type:varchar(36);not null;index:idx_contacts_user_created,priority:1;uniqueIndex:idx_contacts_user_email,priority:1" json:"user_id"`
	Name   string `gorm:"type:varchar(255);not null;index:idx_contacts_name" json:"name"`

	// 以下字段对核心逻辑透明，原样存取
	Email *string `gorm:"type:varchar(255);uniqueIndex:idx_contacts_user_email,priority:2" json:"email"`
	Phone string  `gorm:"type:varchar(64);not null;default:''" json:"phone"`
	Notes string  `gorm:"type:text;not null;default:''" json:"notes"`

	// created_at 是时间顺序导航的排序键，与 user_id 组成联合索引
	CreatedAt time.Time `gorm:"not null;index:idx_contacts_user_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// 只用于生成 user_id 外键，不随联系人加载
	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (Contact) TableName() string {
	return "contacts"
}

// ContactFields 创建和更新时可写的字段
type ContactFields struct {
	Name  string
	Email *string
	Phone string
	Notes string
}

// Apply 用 fields 覆盖联系人的可写字段
func (c *Contact) Apply(fields ContactFields) {
	c.Name = fields.Name
	c.Email = fields.Email
	c.Phone = fields.Phone
	c.Notes = fields.Notes
}

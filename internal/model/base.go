package model

import (
	"time"
)

// BaseModel 公共时间戳。主键各表自定义（UUID 字符串），不做软删除
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

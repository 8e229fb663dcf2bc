package model

// User 联系人所属者。账号的注册、密码、登录由账号服务负责，
// 这里只保留主键和展示字段，供联系人外键和存在性检查使用
type User struct {
	ID    string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name  string `gorm:"type:varchar(128);not null;default:''" json:"name"`
	Email string `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"ContactBook/internal/model"
)

// OwnerDirectory 回答“这个用户是否存在”，用户本身由账号服务管理
type OwnerDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, translate("check user", err)
	}
	return count > 0, nil
}

// Create 写入用户行，仅用于本地数据准备（cmd/token -seed）和测试
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return translate("create user", r.db.WithContext(ctx).Create(user).Error)
}

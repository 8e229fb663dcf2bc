package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 存储层哨兵错误，由 service 层翻译为业务错误码
var (
	ErrNotFound      = errors.New("record not found")
	ErrOwnerNotFound = errors.New("owner not found")
	ErrConstraint    = errors.New("constraint violation")
)

// translate 将 gorm 错误归类为哨兵错误，其余错误原样包装
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrOwnerNotFound):
		return fmt.Errorf("%s: %w", op, ErrOwnerNotFound)
	// contacts 上唯一的外键指向 users
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w: %v", op, ErrOwnerNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

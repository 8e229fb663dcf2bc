package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// Order 列表查询的排序方式，指定排序时 id 作为第二排序键
type Order string

const (
	OrderNone        Order = ""
	OrderByName      Order = "name"
	OrderByCreatedAt Order = "created_at"
)

// ParseOrder 解析查询参数中的 order
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case OrderNone, OrderByName, OrderByCreatedAt:
		return Order(s), nil
	default:
		return OrderNone, fmt.Errorf("unknown order %q", s)
	}
}

func (o Order) apply(db *gorm.DB) *gorm.DB {
	switch o {
	case OrderByName:
		return db.Order("name ASC").Order("id ASC")
	case OrderByCreatedAt:
		return db.Order("created_at ASC").Order("id ASC")
	default:
		return db
	}
}

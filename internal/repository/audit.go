package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ContactBook/internal/model"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record 写入审计记录，message_id 已存在时忽略，返回是否真正写入
func (r *AuditRepository) Record(ctx context.Context, entry *model.ContactAudit) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_id"}}, DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, translate("record contact audit", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByContact 按发生时间返回某个联系人的审计记录
func (r *AuditRepository) ListByContact(ctx context.Context, contactID string) ([]*model.ContactAudit, error) {
	entries := make([]*model.ContactAudit, 0)
	err := r.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("occurred_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, translate("list contact audits", err)
	}
	return entries, nil
}

package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ContactBook/internal/model"
	"ContactBook/pkg/logger"
)

// Migrate 建表和索引
func Migrate() error {
	return MigrateDB(DB())
}

// MigrateDB 对指定连接执行迁移，测试中用于初始化 SQLite
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.User{},
		&model.Contact{},
		&model.ContactAudit{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}

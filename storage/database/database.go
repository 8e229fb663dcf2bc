package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"ContactBook/config"
	dbotel "ContactBook/pkg/database"
	pkgerrors "ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

func Init() error {
	dbOnce.Do(func() {
		cfg := config.Cfg

		dialector, err := openDialector(&cfg)
		if err != nil {
			dbErr = err
			return
		}

		gormCfg := &gorm.Config{
			Logger:                                   newLogger(),
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              cfg.DatabaseDriver == "postgres",
			SkipDefaultTransaction:                   true,
			TranslateError:                           true,
			NowFunc:                                  func() time.Time { return time.Now().UTC() },
		}

		var gormDB *gorm.DB
		gormDB, dbErr = gorm.Open(dialector, gormCfg)
		if dbErr != nil {
			logger.Logger.Error("Failed to open database",
				zap.String("driver", cfg.DatabaseDriver),
				zap.Error(dbErr),
			)
			return
		}

		if err := registerReplicas(gormDB, &cfg); err != nil {
			dbErr = err
			return
		}

		if cfg.OTelEnabled {
			if err := dbotel.WithDefaultOTELPlugin(gormDB, cfg.ServiceName); err != nil {
				logger.Logger.Warn("Failed to register GORM OpenTelemetry plugin", zap.Error(err))
			}
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			dbErr = err
			logger.Logger.Error("Failed to get sql.DB from gorm", zap.Error(err))
			return
		}

		configureConnectionPool(sqlDB, &cfg)

		if err := sqlDB.Ping(); err != nil {
			dbErr = err
			logger.Logger.Error("Failed to ping database", zap.Error(err))
			return
		}

		db = gormDB
		if err := Migrate(); err != nil {
			dbErr = fmt.Errorf("failed to run database migration: %w", err)
			return
		}

		logger.Logger.Info("Database initialized successfully",
			zap.String("driver", cfg.DatabaseDriver),
			zap.Int("replicas", len(cfg.GetReplicaDSNs())),
		)
	})

	return dbErr
}

func DB() *gorm.DB {
	return db
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sqlDB.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func openDialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return postgres.Open(cfg.GetDSN()), nil
	case "sqlite":
		// 写锁冲突时等待而不是立即返回 SQLITE_BUSY
		return sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000&_foreign_keys=1"), nil
	default:
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrUnsupportedDatabaseDriver, cfg.DatabaseDriver)
	}
}

// registerReplicas 配置了只读副本时，列表、搜索、导航等读请求走副本
func registerReplicas(gormDB *gorm.DB, cfg *config.Config) error {
	dsns := cfg.GetReplicaDSNs()
	if cfg.DatabaseDriver != "postgres" || len(dsns) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, 0, len(dsns))
	for _, dsn := range dsns {
		replicas = append(replicas, postgres.Open(dsn))
	}

	resolver := dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}).
		SetMaxIdleConns(cfg.PostgreSQLMaxIdle).
		SetMaxOpenConns(cfg.PostgreSQLMaxOpen).
		SetConnMaxIdleTime(10 * time.Minute).
		SetConnMaxLifetime(2 * time.Hour)

	if err := gormDB.Use(resolver); err != nil {
		return fmt.Errorf("failed to register read replicas: %w", err)
	}
	return nil
}

func configureConnectionPool(sqlDB *sql.DB, cfg *config.Config) {
	if cfg.DatabaseDriver == "sqlite" {
		// SQLite 单写者
		sqlDB.SetMaxOpenConns(1)
		return
	}

	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
}

func newLogger() gormlogger.Interface {
	level := gormlogger.Warn
	switch config.Cfg.LoggerLevel {
	case "DEBUG":
		level = gormlogger.Info
	case "ERROR":
		level = gormlogger.Error
	}

	return gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Logger.Sugar().Infof(format, args...)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ContactBook/config"
	"ContactBook/internal/cache"
	"ContactBook/internal/queue"
	"ContactBook/internal/repository"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/snowflake"
	"ContactBook/storage"
	"ContactBook/storage/database"
	"ContactBook/storage/redis"
)

// worker 消费联系人变更事件并写入 contact_audits
func main() {
	logger.Init()
	defer logger.Sync()

	if !config.Cfg.EventsEnabled {
		logger.Logger.Fatal("EVENTS_ENABLED must be true to run the audit worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = storage.Close(closeCtx)
	}()

	// 未启用 Redis 时只依赖 message_id 唯一索引去重
	var marker queue.MessageMarker
	if rc := redis.Client(); rc != nil {
		marker = cache.NewMessageMarker(rc)
	}

	consumer := queue.NewAuditConsumer(repository.NewAuditRepository(database.DB()), marker)

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
		zap.String("exchange", config.Cfg.ContactEventsExchange),
		zap.Bool("dedup_cache", marker != nil),
	)

	if err := consumer.Start(ctx, config.Cfg.ContactEventsExchange); err != nil && ctx.Err() == nil {
		logger.Logger.Error("Audit consumer stopped", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}

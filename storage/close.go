package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ContactBook/pkg/logger"
	"ContactBook/storage/database"
	"ContactBook/storage/mq"
	"ContactBook/storage/redis"
)

// Close 按 MQ -> Redis -> Database 的顺序关闭连接，先停止事件发布，最后释放数据库
func Close(ctx context.Context) error {
	steps := []struct {
		name  string
		close func(context.Context) error
	}{
		{"message queue", mq.Close},
		{"redis", redis.Close},
		{"database", database.Close},
	}

	var errs []error
	for _, step := range steps {
		if err := step.close(ctx); err != nil {
			logger.Logger.Error("Failed to close "+step.name, zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", step.name, err))
			continue
		}
		logger.Logger.Info("Closed " + step.name)
	}

	return errors.Join(errs...)
}

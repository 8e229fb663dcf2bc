package cache

import (
	"context"
	"fmt"
	"time"

	ri "github.com/redis/go-redis/v9"

	"ContactBook/storage/redis"
)

// 消费端幂等标记：SETNX 抢占，成功后延长 TTL，失败时删除以便重投
const (
	messageProcessedPrefix = "mq:processed"
	processingTTL          = 10 * time.Minute
	processedTTL           = 48 * time.Hour
)

type MessageMarker struct {
	client ri.Cmdable
}

func NewMessageMarker(client ri.Cmdable) *MessageMarker {
	return &MessageMarker{client: client}
}

// TryMarkProcessing 返回 true 表示首次处理
func (m *MessageMarker) TryMarkProcessing(ctx context.Context, messageID string) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)

	ok, err := m.client.SetNX(ctx, key, "processing", processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return ok, nil
}

func (m *MessageMarker) MarkProcessed(ctx context.Context, messageID string) error {
	return m.client.Set(ctx, redis.Key(messageProcessedPrefix, messageID), "completed", processedTTL).Err()
}

func (m *MessageMarker) Unmark(ctx context.Context, messageID string) error {
	return m.client.Del(ctx, redis.Key(messageProcessedPrefix, messageID)).Err()
}

package cache

import (
	"context"
	"errors"
	"time"

	ri "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ContactBook/internal/repository"
	"ContactBook/pkg/logger"
	"ContactBook/storage/redis"
)

const (
	ownerPrefix     = "owner"
	defaultOwnerTTL = 10 * time.Minute
)

// OwnerCache 缓存“用户存在”的结论。
// 只缓存正结果：用户可能在账号服务刚刚注册，负结果缓存会让首次创建联系人失败。
// Redis 不可用时直接回源，不影响请求；连续失败后熔断，跳过 Redis。
type OwnerCache struct {
	client  ri.Cmdable
	source  repository.OwnerDirectory
	ttl     time.Duration
	breaker *CircuitBreaker
}

func NewOwnerCache(client ri.Cmdable, source repository.OwnerDirectory, ttl time.Duration) *OwnerCache {
	if ttl <= 0 {
		ttl = defaultOwnerTTL
	}
	return &OwnerCache{
		client:  client,
		source:  source,
		ttl:     ttl,
		breaker: NewCircuitBreaker("owner_cache", 5, 30*time.Second),
	}
}

var _ repository.OwnerDirectory = (*OwnerCache)(nil)

func (c *OwnerCache) Exists(ctx context.Context, userID string) (bool, error) {
	key := redis.Key(ownerPrefix, userID)

	var n int64
	err := c.breaker.Call(func() (err error) {
		n, err = c.client.Exists(ctx, key).Result()
		return err
	})
	if err != nil {
		logger.Ctx(ctx).Warn("Owner cache lookup failed, falling back to database",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.source.Exists(ctx, userID)
	}
	if n > 0 {
		return true, nil
	}

	exists, err := c.source.Exists(ctx, userID)
	if err != nil || !exists {
		return exists, err
	}

	err = c.breaker.Call(func() error {
		return c.client.Set(ctx, key, 1, c.ttl).Err()
	})
	if err != nil && !errors.Is(err, ErrBreakerOpen) {
		logger.Ctx(ctx).Warn("Failed to cache owner",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return true, nil
}

// Invalidate 删除缓存，账号注销时调用
func (c *OwnerCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, redis.Key(ownerPrefix, userID)).Err()
}

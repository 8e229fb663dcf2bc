package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ContactBook/config"
	"ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/response"
	"ContactBook/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口
	Window time.Duration
	// 时间窗口内最大请求数
	MaxRequests int
	// 限流键前缀
	KeyPrefix string
	// 是否按用户ID限流（需要在认证之后挂载）
	ByUserID bool
	// 是否按IP限流
	ByIP bool
	// 超限后的封禁时长，0 表示不封禁
	BlockDuration time.Duration
}

// DefaultRateLimitConfig 联系人接口的默认限流：每个用户每秒 RATE_LIMIT_RPS 次
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Window:      time.Second,
		MaxRequests: config.Cfg.RateLimitRPS,
		KeyPrefix:   "rate:limit",
		ByUserID:    true,
		ByIP:        true,

		BlockDuration: time.Duration(config.Cfg.RateLimitBlockSeconds) * time.Second,
	}
}

// RateLimiter 基于 Redis zset 的滑动窗口限流器
type RateLimiter struct {
	client redislib.Cmdable
	config RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client redislib.Cmdable, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: cfg, now: time.Now}
}

// getKey 生成限流键，优先按用户
func (rl *RateLimiter) getKey(ctx context.Context, c *app.RequestContext) string {
	var identifier string

	if rl.config.ByUserID {
		if userID, exists := GetUserID(ctx, c); exists {
			identifier = "user:" + userID
		}
	}

	if identifier == "" && rl.config.ByIP {
		identifier = "ip:" + c.ClientIP()
	}

	return redis.Key(rl.config.KeyPrefix, identifier)
}

// Allow 记录本次请求并返回窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := rl.now()
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.client.Pipeline()

	// 先移除窗口之外的记录
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	zcardCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(zcardCmd.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) blockKey(key string) string {
	return key + ":block"
}

func (rl *RateLimiter) Block(ctx context.Context, key string) error {
	return rl.client.Set(ctx, rl.blockKey(key), "1", rl.config.BlockDuration).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, key string) (bool, error) {
	result, err := rl.client.Exists(ctx, rl.blockKey(key)).Result()
	return result > 0, err
}

// RateLimitMiddleware 创建限流中间件。Redis 出错时放行并记录日志
func RateLimitMiddleware(client redislib.Cmdable, cfg RateLimitConfig) app.HandlerFunc {
	limiter := NewRateLimiter(client, cfg)

	return func(ctx context.Context, c *app.RequestContext) {
		key := limiter.getKey(ctx, c)

		if cfg.BlockDuration > 0 {
			blocked, err := limiter.IsBlocked(ctx, key)
			if err != nil {
				logger.Ctx(ctx).Warn("Failed to check block status", zap.Error(err))
			} else if blocked {
				c.Abort()
				response.Error(ctx, c, errors.TooManyRequests)
				return
			}
		}

		allowed, count, err := limiter.Allow(ctx, key)
		if err != nil {
			logger.Ctx(ctx).Warn("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limiter.now().Add(cfg.Window).Unix(), 10))

		if !allowed {
			if cfg.BlockDuration > 0 {
				if err := limiter.Block(ctx, key); err != nil {
					logger.Ctx(ctx).Warn("Failed to block client", zap.Error(err))
				}
			}

			c.Abort()
			response.Error(ctx, c, errors.TooManyRequests)
			return
		}

		c.Next(ctx)
	}
}

// GeneralRateLimitMiddleware 通用限流，未启用 Redis 或关闭限流时直接放行
func GeneralRateLimitMiddleware() app.HandlerFunc {
	client := redis.Client()
	if !config.Cfg.RateLimitEnabled || client == nil || config.Cfg.RateLimitRPS <= 0 {
		return func(ctx context.Context, c *app.RequestContext) { c.Next(ctx) }
	}
	return RateLimitMiddleware(client, DefaultRateLimitConfig())
}

package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ContactBook/config"
	redisotel "ContactBook/pkg/redis"
)

var (
	client *redis.Client
	once   sync.Once
	err    error
)

// Init 建立 Redis 连接，REDIS_ENABLED=false 时跳过
func Init() error {
	if !config.Cfg.RedisEnabled {
		return nil
	}

	once.Do(func() {
		cfg := config.Cfg

		c := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MinIdleConns: 5,
			MaxRetries:   3,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err = c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return
		}

		if cfg.OTelEnabled {
			redisotel.InstrumentRedisClient(c, cfg.ServiceName, cfg.RedisDB)
		}

		client = c
	})

	return err
}

// Client 返回全局客户端，未启用或未初始化时为 nil
func Client() *redis.Client {
	return client
}

// Enabled 报告 Redis 是否可用
func Enabled() bool {
	return client != nil
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}

	return client.Close()
}

// Key 拼接带全局前缀的键名，空段会被跳过
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = "cbook"
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}

	return sb.String()
}

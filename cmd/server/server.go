package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	"ContactBook/config"
	"ContactBook/internal/handler"
	"ContactBook/internal/middleware"
	"ContactBook/internal/router"
	"ContactBook/internal/service"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/otel"
	"ContactBook/pkg/snowflake"
	"ContactBook/pkg/token"
	"ContactBook/storage"
	"ContactBook/storage/database"
	"ContactBook/storage/redis"
)

func main() {
	// 日志部分
	logger.Init()
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
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

	// OTel 要在存储层之前初始化，GORM 和 Redis 的插件依赖全局 provider
	if config.Cfg.OTelEnabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName:  config.Cfg.ServiceName,
			Environment:  config.Cfg.Environment,
			OTLPEndpoint: config.Cfg.OTelEndpoint,
			SampleRatio:  config.Cfg.OTelSampleRatio,
		})
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Logger.Warn("Failed to shutdown OpenTelemetry", zap.Error(err))
			}
		}()
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = storage.Close(closeCtx)
	}()

	// token 在中间件前初始化，middleware 依赖 token
	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	}

	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", config.Cfg.ServiceName),
		zap.String("port", config.Cfg.ServerPort),
		zap.String("environment", config.Cfg.Environment),
		zap.String("database", config.Cfg.DatabaseDriver),
		zap.Bool("redis", redis.Enabled()),
		zap.Bool("events", config.Cfg.EventsEnabled),
	)

	addr := net.JoinHostPort(config.Cfg.ServerHost, config.Cfg.ServerPort)
	opts := []hzconfig.Option{server.WithHostPorts(addr), server.WithExitWaitTime(3 * time.Second)}

	var tracerMW app.HandlerFunc
	if config.Cfg.OTelEnabled {
		var tracerOpt hzconfig.Option
		tracerOpt, tracerMW = middleware.NewServerTracerConfig()
		opts = append(opts, tracerOpt)
	}

	h := server.Default(opts...)
	if tracerMW != nil {
		h.Use(tracerMW)
	}

	router.Register(h.Engine, handler.NewContactHandler(service.Contact()), readinessChecks())

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}

func readinessChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := database.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	if rc := redis.Client(); rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	return checks
}

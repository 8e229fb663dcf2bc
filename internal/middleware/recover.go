package middleware

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ContactBook/config"
	"ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 堆栈追踪级别（full, simple, none）
	StackTraceLevel string
	// 非生产环境在响应里返回 panic 详情
	ExposeDetails bool
	// 是否记录请求体（小于 1KB 的 JSON）
	LogRequestBody bool
	// 是否在当前 span 上记录异常
	RecordInSpan bool
}

// NewRecoverConfig 按运行环境生成默认配置
func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		StackTraceLevel: "simple",
		ExposeDetails:   !config.Cfg.IsProduction(),
		LogRequestBody:  !config.Cfg.IsProduction(),
		RecordInSpan:    true,
	}
}

// RecoverMiddleware 创建 recover 中间件
func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(NewRecoverConfig())
}

func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, cfg RecoverConfig) {
	stack := getStackTrace(cfg.StackTraceLevel)

	logPanic(ctx, c, err, stack, cfg)

	if cfg.RecordInSpan {
		span := trace.SpanFromContext(ctx)
		span.RecordError(fmt.Errorf("panic: %v", err))
		span.SetStatus(codes.Error, "panic recovered")
	}

	var details map[string]interface{}
	if cfg.ExposeDetails {
		details = map[string]interface{}{
			"panic": fmt.Sprintf("%v", err),
		}
		if len(stack) > 0 {
			details["stack"] = string(stack)
		}
	}

	c.Abort()
	response.ErrorWithDetails(ctx, c, errors.InternalError, details)
}

// getStackTrace 获取堆栈追踪
func getStackTrace(level string) []byte {
	switch level {
	case "full":
		return debug.Stack()
	case "simple":
		var b strings.Builder
		b.WriteString("goroutine panic:\n")
		// 跳过 runtime 和 recover 相关的帧
		for i := 3; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			fn := runtime.FuncForPC(pc)
			if fn == nil || strings.Contains(file, "/runtime/") {
				continue
			}
			fmt.Fprintf(&b, "  %s:%d\n    %s\n", file, line, fn.Name())
		}
		return []byte(b.String())
	default:
		return nil
	}
}

func logPanic(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte, cfg RecoverConfig) {
	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", string(c.UserAgent())),
	}

	if userID, exists := GetUserID(ctx, c); exists {
		fields = append(fields, zap.String("user_id", userID))
	}

	if cfg.LogRequestBody {
		body := c.Request.Body()
		if len(body) > 0 && len(body) < 1024 && strings.Contains(string(c.ContentType()), "json") {
			fields = append(fields, zap.ByteString("body", body))
		}
	}

	if len(stack) > 0 {
		fields = append(fields, zap.ByteString("stack", stack))
	}

	logger.Ctx(ctx).Error("[PANIC RECOVERED]", fields...)
}

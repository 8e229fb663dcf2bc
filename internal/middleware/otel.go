package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ContactBook/pkg/logger"
)

const instrumentationName = "ContactBook/internal/middleware"

var (
	// HTTP 相关指标
	httpServerRequestTotal   metric.Int64Counter
	httpServerDuration       metric.Float64Histogram
	httpServerActiveRequests metric.Int64UpDownCounter
)

// 全局 Meter 在 provider 设置前是委托实现，可以在 init 中创建
func init() {
	meter := otel.Meter(instrumentationName)

	httpServerRequestTotal, _ = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	httpServerDuration, _ = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	httpServerActiveRequests, _ = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	)
}

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标/trace 序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// routeOf 使用路由模板而不是原始路径，避免联系人 ID 撑爆指标基数
func routeOf(c *app.RequestContext) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// OpenTelemetryMiddleware 记录 HTTP 指标并在当前 span 上补充业务属性
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer(instrumentationName)

	return func(ctx context.Context, c *app.RequestContext) {
		startTime := time.Now()
		httpServerActiveRequests.Add(ctx, 1)
		defer httpServerActiveRequests.Add(ctx, -1)

		method := toValidUTF8(string(c.Method()))
		route := routeOf(c)

		spanCtx, span := tracer.Start(ctx, method+" "+route, trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.String("user_agent.original", toValidUTF8(string(c.UserAgent()))),
		))
		defer span.End()

		if requestID := logger.RequestID(ctx); requestID != "" {
			span.SetAttributes(attribute.String("http.request_id", requestID))
		}

		c.Next(spanCtx)

		if userID, ok := GetUserID(spanCtx, c); ok {
			span.SetAttributes(attribute.String("enduser.id", userID))
		}

		statusCode := c.Response.StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
		if statusCode >= 500 {
			span.SetStatus(codes.Error, "HTTP server error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		}

		labels := metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", statusCode),
		)
		httpServerRequestTotal.Add(ctx, 1, labels)
		httpServerDuration.Record(ctx, time.Since(startTime).Seconds(), labels)
	}
}

// NewServerTracerConfig 创建 Hertz Server 的追踪配置
// 返回用于初始化 Hertz server 的配置选项和追踪中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}

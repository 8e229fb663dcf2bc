package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "contactbook/redis"

var (
	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
)

// 全局 Meter 在 SetMeterProvider 之前会做委托，这里直接创建即可
func init() {
	if err := initMetrics(otel.Meter(instrumentationName)); err != nil {
		otel.Handle(err)
	}
}

func initMetrics(meter metric.Meter) error {
	var err error

	commandsTotal, err = meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	commandDuration, err = meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return err
	}

	// 命中率主要用来观察 owner 缓存
	cacheHits, err = meter.Int64Counter(
		"redis.cache.hits",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	cacheMisses, err = meter.Int64Counter(
		"redis.cache.misses",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// TracingHook 为每条命令创建 client span 并记录指标
type TracingHook struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func NewTracingHook(serviceName string, db int) *TracingHook {
	return &TracingHook{
		tracer: otel.Tracer(serviceName + ".redis"),
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
			attribute.String("service.name", serviceName),
		},
	}
}

func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := strings.ToUpper(cmd.Name())

		ctx, span := th.tracer.Start(ctx, "redis."+strings.ToLower(name),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		span.SetAttributes(semconv.DBOperation(name))
		if keys := extractKeys(cmd.Args()); len(keys) > 0 {
			span.SetAttributes(attribute.StringSlice("redis.keys", keys))
		}

		start := time.Now()
		err := next(ctx, cmd)
		duration := time.Since(start).Seconds()

		status := commandStatus(err)
		if status == "error" {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}

		labels := metric.WithAttributes(
			attribute.String("redis.command", name),
			attribute.String("redis.status", status),
		)
		commandsTotal.Add(ctx, 1, labels)
		commandDuration.Record(ctx, duration, labels)

		switch name {
		case "GET", "EXISTS":
			if status == "error" {
				break
			}
			if isMiss(cmd, err) {
				cacheMisses.Add(ctx, 1)
			} else {
				cacheHits.Add(ctx, 1)
			}
		}

		return err
	}
}

func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		span.SetAttributes(attribute.Int("redis.pipeline.count", len(cmds)))

		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}

		commandsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("redis.command", "PIPELINE"),
			attribute.String("redis.status", commandStatus(err)),
		))

		return err
	}
}

func commandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "not_found"
	default:
		return "error"
	}
}

// isMiss GET 返回 redis.Nil，EXISTS 返回 0
func isMiss(cmd redis.Cmder, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	if ic, ok := cmd.(*redis.IntCmd); ok {
		return ic.Val() == 0
	}
	return false
}

// extractKeys 取命令参数中的键名，最多 5 个
func extractKeys(args []interface{}) []string {
	if len(args) < 2 {
		return nil
	}

	keys := make([]string, 0, len(args)-1)
	for i := 1; i < len(args) && len(keys) < 5; i++ {
		if key, ok := args[i].(string); ok {
			keys = append(keys, sanitizeKey(key))
		}
	}
	return keys
}

func sanitizeKey(key string) string {
	if strings.Contains(key, "token") || strings.Contains(key, "secret") {
		if i := strings.Index(key, ":"); i > 0 {
			return key[:i] + ":***"
		}
		return "***"
	}

	if len(key) > 100 {
		return key[:100] + "..."
	}
	return key
}

// InstrumentRedisClient 给客户端挂上 TracingHook
func InstrumentRedisClient(client *redis.Client, serviceName string, db int) *redis.Client {
	client.AddHook(NewTracingHook(serviceName, db))
	return client
}

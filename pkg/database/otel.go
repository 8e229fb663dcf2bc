package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	instrumentationName = "contactbook/gorm"

	spanKey  = "otel:span"
	startKey = "otel:start_time"
)

var (
	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram

	secretPattern = regexp.MustCompile(`(?i)(password|token|secret)\s*=\s*'[^']*'`)
)

func init() {
	if err := initMetrics(otel.Meter(instrumentationName)); err != nil {
		otel.Handle(err)
	}
}

func initMetrics(meter metric.Meter) error {
	var err error

	queriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	return err
}

// OTELPlugin GORM 插件：每条语句一个 client span，并记录次数和耗时
type OTELPlugin struct {
	tracer trace.Tracer
	config PluginConfig
}

type PluginConfig struct {
	ServiceName   string
	EnableMetrics bool
	MaxSQLLength  int
}

func DefaultPluginConfig() PluginConfig {
	return PluginConfig{
		ServiceName:   "contactbook",
		EnableMetrics: true,
		MaxSQLLength:  500,
	}
}

func NewOTELPlugin(config PluginConfig) *OTELPlugin {
	if config.ServiceName == "" {
		config.ServiceName = "contactbook"
	}
	if config.MaxSQLLength <= 0 {
		config.MaxSQLLength = 500
	}

	return &OTELPlugin{
		tracer: otel.Tracer(config.ServiceName + ".gorm"),
		config: config,
	}
}

func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

// Initialize 在每类 GORM 回调前后挂钩
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("select")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after); err != nil {
		return err
	}

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("insert")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("update")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("delete")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("row")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("raw")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after)
}

func (p *OTELPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, "db."+operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", db.Dialector.Name()),
				attribute.String("db.operation", operation),
				attribute.String("service.name", p.config.ServiceName),
			),
		)

		db.InstanceSet(startKey, time.Now())
		db.InstanceSet(spanKey, span)
		db.Statement.Context = ctx
	}
}

func (p *OTELPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if table := db.Statement.Table; table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	span.SetAttributes(
		semconv.DBStatement(p.statement(db.Statement.SQL.String())),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	)

	status := "success"
	switch {
	case db.Error == nil:
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		status = "not_found"
	default:
		status = "error"
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if !p.config.EnableMetrics {
		return
	}

	var elapsed float64
	if start, ok := db.InstanceGet(startKey); ok {
		if t, ok := start.(time.Time); ok {
			elapsed = time.Since(t).Seconds()
		}
	}
	p.record(db.Statement.Context, operationOf(db.Statement.SQL.String()), status, elapsed)
}

func (p *OTELPlugin) record(ctx context.Context, operation, status string, seconds float64) {
	labels := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.String("db.status", status),
	)
	queriesTotal.Add(ctx, 1, labels)
	queryDuration.Record(ctx, seconds, labels)
}

// statement 截断并遮蔽 SQL 中的敏感字面量，参数本身不记录
func (p *OTELPlugin) statement(sql string) string {
	if len(sql) > p.config.MaxSQLLength {
		sql = sql[:p.config.MaxSQLLength] + "..."
	}
	return secretPattern.ReplaceAllString(sql, "$1='***'")
}

func operationOf(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return strings.ToLower(op)
		}
	}
	return "query"
}

// WithDefaultOTELPlugin 以默认配置注册插件
func WithDefaultOTELPlugin(db *gorm.DB, serviceName string) error {
	config := DefaultPluginConfig()
	config.ServiceName = serviceName
	return db.Use(NewOTELPlugin(config))
}

package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 联系人业务指标。
// 仪表在包初始化时从全局 Meter 创建，OTel 未启用时为 no-op。

const instrumentationName = "contactbook/contacts"

var (
	contactOperationsTotal metric.Int64Counter
	navigationTotal        metric.Int64Counter
	contactEventsTotal     metric.Int64Counter
)

func init() {
	if err := initMetrics(otel.Meter(instrumentationName)); err != nil {
		otel.Handle(err)
	}
}

func initMetrics(meter metric.Meter) error {
	var err error

	contactOperationsTotal, err = meter.Int64Counter(
		"contacts.operations.total",
		metric.WithDescription("Contact operations by name and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	navigationTotal, err = meter.Int64Counter(
		"contacts.navigation.total",
		metric.WithDescription("Navigation requests by kind and whether a contact was returned"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	contactEventsTotal, err = meter.Int64Counter(
		"contacts.events.total",
		metric.WithDescription("Contact change events by type and publish status"),
		metric.WithUnit("{event}"),
	)
	return err
}

// RecordOperation 记录一次联系人操作，outcome 为 ok 或错误码
func RecordOperation(ctx context.Context, operation, outcome string) {
	contactOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordNavigation kind 为 next 或 skip
func RecordNavigation(ctx context.Context, kind string, found bool) {
	navigationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("found", found),
	))
}

func RecordEvent(ctx context.Context, eventType string, published bool) {
	status := "published"
	if !published {
		status = "failed"
	}
	contactEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("status", status),
	))
}

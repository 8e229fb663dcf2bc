package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "contactbook/rabbitmq"

var (
	messagesTotal   metric.Int64Counter
	messageDuration metric.Float64Histogram
	publishErrors   metric.Int64Counter
)

func init() {
	if err := initMetrics(otel.Meter(instrumentationName)); err != nil {
		otel.Handle(err)
	}
}

func initMetrics(meter metric.Meter) error {
	var err error

	messagesTotal, err = meter.Int64Counter(
		"mq.messages.total",
		metric.WithDescription("Total number of RabbitMQ messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	messageDuration, err = meter.Float64Histogram(
		"mq.message.duration",
		metric.WithDescription("RabbitMQ publish and handle duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return err
	}

	publishErrors, err = meter.Int64Counter(
		"mq.publish.errors",
		metric.WithDescription("Number of RabbitMQ publish errors"),
		metric.WithUnit("{error}"),
	)
	return err
}

// Publisher 抽象出 amqp.Channel 的发布方法，便于测试替换
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishWithTracing 发布消息：创建 producer span，并把追踪上下文注入消息头
func PublishWithTracing(
	ctx context.Context,
	ch Publisher,
	serviceName, exchange, routingKey string,
	msg amqp.Publishing,
) error {
	start := time.Now()

	ctx, span := otel.Tracer(serviceName+".rabbitmq").Start(ctx, "rabbitmq.publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			attribute.String("messaging.destination.name", exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
	defer span.End()

	headers := make(amqp.Table, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, &MessageHeaderCarrier{Headers: headers})
	msg.Headers = headers

	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)

	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		publishErrors.Add(ctx, 1)
	}

	labels := metric.WithAttributes(
		attribute.String("messaging.operation", "publish"),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
		attribute.String("messaging.status", status),
	)
	messagesTotal.Add(ctx, 1, labels)
	messageDuration.Record(ctx, time.Since(start).Seconds(), labels)

	return err
}

// StartConsumeSpan 从消息头恢复上游上下文并开启 consumer span，调用方负责 End
func StartConsumeSpan(ctx context.Context, serviceName string, d amqp.Delivery) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, &MessageHeaderCarrier{Headers: d.Headers})

	return otel.Tracer(serviceName+".rabbitmq").Start(ctx, "rabbitmq.process "+d.RoutingKey,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			attribute.String("messaging.rabbitmq.exchange", d.Exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(d.RoutingKey),
			semconv.MessagingMessageID(d.MessageId),
		),
	)
}

// RecordConsume 记录一次消费的结果
func RecordConsume(ctx context.Context, routingKey, status string, start time.Time) {
	labels := metric.WithAttributes(
		attribute.String("messaging.operation", "process"),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
		attribute.String("messaging.status", status),
	)
	messagesTotal.Add(ctx, 1, labels)
	messageDuration.Record(ctx, time.Since(start).Seconds(), labels)
}

// MessageHeaderCarrier 让 amqp.Table 满足 propagation.TextMapCarrier
type MessageHeaderCarrier struct {
	Headers amqp.Table
}

var _ propagation.TextMapCarrier = (*MessageHeaderCarrier)(nil)

func (m *MessageHeaderCarrier) Get(key string) string {
	if val, ok := m.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (m *MessageHeaderCarrier) Set(key, value string) {
	if m.Headers == nil {
		m.Headers = make(amqp.Table)
	}
	m.Headers[key] = value
}

func (m *MessageHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	return keys
}

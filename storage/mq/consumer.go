package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"ContactBook/config"
	pkgerrors "ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
	mqotel "ContactBook/pkg/mq"
)

// MessageHandler 返回 nil 则 ack；返回错误则 nack 并重新入队
type MessageHandler func(ctx context.Context, d amqp.Delivery) error

type ConsumeOptions struct {
	Exchange      string
	Queue         string
	BindingKey    string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 声明并绑定队列后阻塞消费，ctx 取消或 channel 关闭时返回
func Consume(ctx context.Context, opts ConsumeOptions) error {
	if conn == nil {
		return pkgerrors.ErrBrokerNotInitialized
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", opts.Queue, err)
	}
	if err := ch.QueueBind(opts.Queue, opts.BindingKey, opts.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", opts.Queue, err)
	}

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx,
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("binding_key", opts.BindingKey),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			handleDelivery(ctx, opts, d)
		}
	}
}

func handleDelivery(ctx context.Context, opts ConsumeOptions, d amqp.Delivery) {
	start := time.Now()
	msgCtx, span := mqotel.StartConsumeSpan(ctx, config.Cfg.ServiceName, d)
	defer span.End()

	if err := opts.Handler(msgCtx, d); err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Logger.Error("Failed to process message",
			zap.String("queue", opts.Queue),
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)
		mqotel.RecordConsume(msgCtx, d.RoutingKey, "error", start)
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	mqotel.RecordConsume(msgCtx, d.RoutingKey, "success", start)
	_ = d.Ack(false)
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ContactBook/internal/model"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/snowflake"
	"ContactBook/storage/mq"
)

// AuditRecorder 审计记录存储，见 repository.AuditRepository
type AuditRecorder interface {
	Record(ctx context.Context, entry *model.ContactAudit) (bool, error)
}

// MessageMarker 消费端幂等标记，见 cache.MessageMarker
type MessageMarker interface {
	TryMarkProcessing(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
	Unmark(ctx context.Context, messageID string) error
}

// AuditConsumer 把联系人事件落成审计记录。
// Redis 标记挡住重复投递，message_id 唯一索引兜底。
type AuditConsumer struct {
	audits AuditRecorder
	marker MessageMarker // 可为 nil
	nextID func() (int64, error)
	now    func() time.Time
}

func NewAuditConsumer(audits AuditRecorder, marker MessageMarker) *AuditConsumer {
	return &AuditConsumer{
		audits: audits,
		marker: marker,
		nextID: snowflake.NextID,
		now:    time.Now,
	}
}

// Start 阻塞消费直到 ctx 取消
func (c *AuditConsumer) Start(ctx context.Context, exchange string) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Exchange:      exchange,
		Queue:         AuditQueue,
		BindingKey:    AuditBindingKey,
		ConsumerTag:   AuditConsumerTag,
		PrefetchCount: 20,
		Handler: func(ctx context.Context, d amqp.Delivery) error {
			return c.Handle(ctx, d.Body)
		},
	})
}

// Handle 处理一条事件消息
func (c *AuditConsumer) Handle(ctx context.Context, body []byte) error {
	var msg model.ContactEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 无法解析的消息重投也没有意义
		logger.Logger.Error("Dropping malformed contact event", zap.Error(err))
		return nil
	}
	// 没有 message_id 无法去重，也无法写入唯一索引
	if msg.MessageID == "" {
		logger.Logger.Error("Dropping contact event without message_id",
			zap.String("type", string(msg.Type)),
			zap.String("contact_id", msg.ContactID),
		)
		return nil
	}

	if c.marker != nil {
		first, err := c.marker.TryMarkProcessing(ctx, msg.MessageID)
		if err != nil {
			logger.Logger.Warn("Failed to check message processed status",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		} else if !first {
			logger.Logger.Info("Message already processed or being processed, skipping",
				zap.String("message_id", msg.MessageID),
			)
			return nil
		}
	}

	if err := c.record(ctx, msg); err != nil {
		if c.marker != nil {
			_ = c.marker.Unmark(ctx, msg.MessageID)
		}
		return err
	}

	if c.marker != nil {
		if err := c.marker.MarkProcessed(ctx, msg.MessageID); err != nil {
			logger.Logger.Warn("Failed to mark message as processed",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (c *AuditConsumer) record(ctx context.Context, msg model.ContactEventMessage) error {
	id, err := c.nextID()
	if err != nil {
		return fmt.Errorf("failed to generate audit ID: %w", err)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, msg.OccurredAt)
	if err != nil {
		occurredAt = c.now()
	}

	var snapshot []byte
	if msg.Contact != nil {
		if snapshot, err = json.Marshal(msg.Contact); err != nil {
			return fmt.Errorf("failed to marshal contact snapshot: %w", err)
		}
	}

	written, err := c.audits.Record(ctx, &model.ContactAudit{
		ID:         id,
		MessageID:  msg.MessageID,
		Type:       msg.Type,
		ContactID:  msg.ContactID,
		UserID:     msg.UserID,
		Snapshot:   string(snapshot),
		OccurredAt: occurredAt.UTC(),
		CreatedAt:  c.now().UTC(),
	})
	if err != nil {
		return err
	}

	logger.Logger.Info("Contact event audited",
		zap.String("message_id", msg.MessageID),
		zap.String("type", string(msg.Type)),
		zap.String("contact_id", msg.ContactID),
		zap.Bool("duplicate", !written),
	)
	return nil
}

package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ContactBook/internal/model"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/snowflake"
	"ContactBook/storage/mq"
)

// PublishFunc 与 mq.PublishJSON 同签名，测试时替换
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// ContactEventProducer 把联系人变更发布到 topic exchange，routing key 为事件类型
type ContactEventProducer struct {
	exchange string
	publish  PublishFunc
	nextID   func() (string, error)
}

func NewContactEventProducer(exchange string) *ContactEventProducer {
	return &ContactEventProducer{
		exchange: exchange,
		publish:  mq.PublishJSON,
		nextID:   snowflake.NextString,
	}
}

func (p *ContactEventProducer) PublishContactEvent(ctx context.Context, msg model.ContactEventMessage) error {
	if msg.MessageID == "" {
		id, err := p.nextID()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = id
	}

	if err := p.publish(ctx, p.exchange, string(msg.Type), msg.MessageID, msg); err != nil {
		return err
	}

	logger.Ctx(ctx).Debug("Published contact event",
		zap.String("message_id", msg.MessageID),
		zap.String("type", string(msg.Type)),
		zap.String("contact_id", msg.ContactID),
	)
	return nil
}

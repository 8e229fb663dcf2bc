package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ContactBook/internal/model"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/metrics"
)

// EventPublisher 发布联系人变更事件，实现见 internal/queue
type EventPublisher interface {
	PublishContactEvent(ctx context.Context, msg model.ContactEventMessage) error
}

// publish 尽力而为，失败只记录日志，不影响已经提交的写操作
func (s *ContactService) publish(ctx context.Context, typ model.ContactEventType, contact *model.Contact) {
	if s.events == nil || contact == nil {
		return
	}

	msg := model.ContactEventMessage{
		Type:       typ,
		ContactID:  contact.ID,
		UserID:     contact.UserID,
		Contact:    contact,
		OccurredAt: s.now().UTC().Format(time.RFC3339Nano),
	}

	err := s.events.PublishContactEvent(ctx, msg)
	metrics.RecordEvent(ctx, string(typ), err == nil)
	if err != nil {
		logger.Ctx(ctx).Warn("Failed to publish contact event",
			zap.String("type", string(typ)),
			zap.String("contact_id", contact.ID),
			zap.Error(err),
		)
	}
}

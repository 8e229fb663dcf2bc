package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ContactBook/config"
	"ContactBook/internal/cache"
	"ContactBook/internal/model"
	"ContactBook/internal/model/dto"
	"ContactBook/internal/queue"
	"ContactBook/internal/repository"
	pkgerrors "ContactBook/pkg/errors"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/metrics"
	"ContactBook/storage/database"
	"ContactBook/storage/redis"
)

const maxNameLength = 255

var (
	contactService *ContactService
	contactOnce    sync.Once
)

// Contact 返回基于全局存储构建的单例，需在 storage.Init 之后调用
func Contact() *ContactService {
	contactOnce.Do(func() {
		cfg := config.Cfg
		db := database.DB()

		var repoOpts []repository.ContactOption
		if rc := redis.Client(); rc != nil {
			ttl := time.Duration(cfg.OwnerCacheTTLSeconds) * time.Second
			repoOpts = append(repoOpts, repository.WithOwnerDirectory(
				cache.NewOwnerCache(rc, repository.NewUserRepository(db), ttl),
			))
		}

		opts := []Option{WithUpdateOwnerCheck(cfg.ContactUpdateVerifyOwner)}
		if cfg.EventsEnabled {
			opts = append(opts, WithEvents(queue.NewContactEventProducer(cfg.ContactEventsExchange)))
		}

		contactService = NewContactService(repository.NewContactRepository(db, repoOpts...), opts...)
	})

	return contactService
}

// ContactService 联系人业务入口：校验、归属检查、错误翻译、事件发布
type ContactService struct {
	store     repository.ContactStore
	navigator *Navigator
	events    EventPublisher
	now       func() time.Time

	// 更新前先确认记录属于调用者，默认关闭以保持直接覆盖的语义
	verifyOwnerOnUpdate bool
}

type Option func(*ContactService)

func WithEvents(events EventPublisher) Option {
	return func(s *ContactService) { s.events = events }
}

func WithUpdateOwnerCheck(enabled bool) Option {
	return func(s *ContactService) { s.verifyOwnerOnUpdate = enabled }
}

func WithServiceClock(now func() time.Time) Option {
	return func(s *ContactService) { s.now = now }
}

func NewContactService(store repository.ContactStore, opts ...Option) *ContactService {
	s := &ContactService{
		store:     store,
		navigator: NewNavigator(store),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 为 ownerID 新建联系人，用户不存在时返回 ErrUserNotFound
func (s *ContactService) Create(ctx context.Context, ownerID string, req dto.ContactRequest) (_ *model.Contact, err error) {
	defer func() { metrics.RecordOperation(ctx, "create", outcome(err)) }()

	if err := validateOwnerID(ownerID); err != nil {
		return nil, err
	}
	fields, err := validateFields(req)
	if err != nil {
		return nil, err
	}

	contact, err := s.store.Create(ctx, ownerID, fields)
	if err != nil {
		return nil, translateStoreError(err)
	}

	logger.Ctx(ctx).Info("Contact created",
		zap.String("contact_id", contact.ID),
		zap.String("user_id", ownerID),
	)
	s.publish(ctx, model.ContactEventCreated, contact)

	return contact, nil
}

// Get 读取单个联系人，不存在和不属于调用者都返回 ContactNotFound
func (s *ContactService) Get(ctx context.Context, ownerID, id string) (_ *model.Contact, err error) {
	defer func() { metrics.RecordOperation(ctx, "get", outcome(err)) }()

	if err := validateContactID(id); err != nil {
		return nil, err
	}

	contact, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if err := assertOwned(contact, ownerID); err != nil {
		return nil, pkgerrors.ContactNotFound
	}
	return contact, nil
}

// Update 整体覆盖联系人字段，并把归属写为 ownerID
func (s *ContactService) Update(ctx context.Context, ownerID, id string, req dto.ContactRequest) (_ *model.Contact, err error) {
	defer func() { metrics.RecordOperation(ctx, "update", outcome(err)) }()

	if err := validateContactID(id); err != nil {
		return nil, err
	}
	if err := validateOwnerID(ownerID); err != nil {
		return nil, err
	}
	fields, err := validateFields(req)
	if err != nil {
		return nil, err
	}

	if s.verifyOwnerOnUpdate {
		if _, err := s.store.FindOwned(ctx, id, ownerID); err != nil {
			return nil, translateStoreError(err)
		}
	}

	contact, err := s.store.Update(ctx, id, ownerID, fields)
	if err != nil {
		return nil, translateStoreError(err)
	}

	logger.Ctx(ctx).Info("Contact updated",
		zap.String("contact_id", contact.ID),
		zap.String("user_id", ownerID),
	)
	s.publish(ctx, model.ContactEventUpdated, contact)

	return contact, nil
}

// Delete 只能删除属于 ownerID 的联系人，返回被删除的记录
func (s *ContactService) Delete(ctx context.Context, ownerID, id string) (_ *model.Contact, err error) {
	defer func() { metrics.RecordOperation(ctx, "delete", outcome(err)) }()

	if err := validateContactID(id); err != nil {
		return nil, err
	}

	if _, err := s.store.FindOwned(ctx, id, ownerID); err != nil {
		return nil, translateStoreError(err)
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}

	logger.Ctx(ctx).Info("Contact deleted",
		zap.String("contact_id", deleted.ID),
		zap.String("user_id", ownerID),
	)
	s.publish(ctx, model.ContactEventDeleted, deleted)

	return deleted, nil
}

func (s *ContactService) List(ctx context.Context, ownerID string, order repository.Order) ([]*model.Contact, error) {
	contacts, err := s.store.ListByOwner(ctx, ownerID, order)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return contacts, nil
}

// SearchByLetter 名字以 letter 开头（区分大小写），letter 为空时返回全部
func (s *ContactService) SearchByLetter(ctx context.Context, ownerID, letter string, order repository.Order) ([]*model.Contact, error) {
	if letter == "" {
		return s.List(ctx, ownerID, order)
	}

	contacts, err := s.store.ListByOwnerWithPrefix(ctx, ownerID, letter, order)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return contacts, nil
}

// SearchByName 名字包含 name（区分大小写），name 为空时返回全部
func (s *ContactService) SearchByName(ctx context.Context, ownerID, name string, order repository.Order) ([]*model.Contact, error) {
	if name == "" {
		return s.List(ctx, ownerID, order)
	}

	contacts, err := s.store.ListByOwnerContaining(ctx, ownerID, name, order)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return contacts, nil
}

func (s *ContactService) Next(ctx context.Context, ownerID, currentID string) (NavigationResult, error) {
	result, err := s.navigator.Next(ctx, ownerID, currentID)
	if err != nil {
		return NavigationResult{}, fmt.Errorf("contact store: %w", err)
	}
	metrics.RecordNavigation(ctx, "next", result.Contact != nil)
	return result, nil
}

func (s *ContactService) SkipToNextLetter(ctx context.Context, ownerID, currentID string) (NavigationResult, error) {
	result, err := s.navigator.SkipToNextLetter(ctx, ownerID, currentID)
	if err != nil {
		return NavigationResult{}, fmt.Errorf("contact store: %w", err)
	}
	metrics.RecordNavigation(ctx, "skip", result.Contact != nil)
	return result, nil
}

// outcome 指标标签：成功为 ok，业务错误为错误码
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var def pkgerrors.Definition
	if errors.As(err, &def) {
		return def.Code
	}
	return pkgerrors.InternalError.Code
}

// translateStoreError 把存储层哨兵错误翻译为业务错误，其余错误保留原始链路
func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrOwnerNotFound):
		return pkgerrors.ErrUserNotFound
	case errors.Is(err, repository.ErrNotFound):
		return pkgerrors.ContactNotFound
	case errors.Is(err, repository.ErrConstraint):
		return pkgerrors.ContactConflict
	default:
		return fmt.Errorf("contact store: %w", err)
	}
}

func validateOwnerID(ownerID string) error {
	if _, err := uuid.Parse(ownerID); err != nil {
		return pkgerrors.InvalidUserID
	}
	return nil
}

func validateContactID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return pkgerrors.InvalidContactID
	}
	return nil
}

// validateFields 名字必填；空字符串邮箱视为未填写，避免占用唯一索引
func validateFields(req dto.ContactRequest) (model.ContactFields, error) {
	fields := req.Fields()

	if strings.TrimSpace(fields.Name) == "" {
		return fields, pkgerrors.InvalidPayload.WithMessage("name is required")
	}
	if utf8.RuneCountInString(fields.Name) > maxNameLength {
		return fields, pkgerrors.InvalidPayload.WithMessage("name is too long")
	}

	if fields.Email != nil && strings.TrimSpace(*fields.Email) == "" {
		fields.Email = nil
	}

	return fields, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"ContactBook/internal/model"
	"ContactBook/internal/repository"
)

const (
	alice   = "11111111-1111-1111-1111-111111111111"
	bob     = "22222222-2222-2222-2222-222222222222"
	nobody  = "33333333-3333-3333-3333-333333333333"
	missing = "99999999-9999-9999-9999-999999999999"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// memStore 内存版 ContactStore，语义与 ContactRepository 一致
type memStore struct {
	mu       sync.Mutex
	owners   map[string]bool
	contacts map[string]*model.Contact
	seq      int

	// 非空时所有操作都返回该错误
	failWith error
}

func newMemStore(owners ...string) *memStore {
	s := &memStore{owners: map[string]bool{}, contacts: map[string]*model.Contact{}}
	for _, o := range owners {
		s.owners[o] = true
	}
	return s
}

var _ repository.ContactStore = (*memStore)(nil)

func (s *memStore) tick() (string, time.Time) {
	s.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq), epoch.Add(time.Duration(s.seq) * time.Second)
}

func clone(c *model.Contact) *model.Contact {
	cp := *c
	return &cp
}

func (s *memStore) Create(_ context.Context, ownerID string, fields model.ContactFields) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	if !s.owners[ownerID] {
		return nil, fmt.Errorf("create contact: %w", repository.ErrOwnerNotFound)
	}
	if fields.Email != nil {
		for _, c := range s.contacts {
			if c.UserID == ownerID && c.Email != nil && *c.Email == *fields.Email {
				return nil, fmt.Errorf("create contact: %w", repository.ErrConstraint)
			}
		}
	}

	id, now := s.tick()
	c := &model.Contact{ID: id, UserID: ownerID, CreatedAt: now, UpdatedAt: now}
	c.Apply(fields)
	s.contacts[id] = c
	return clone(c), nil
}

// put 直接写入一条记录，用于构造相同 created_at 的场景
func (s *memStore) put(c *model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.ID] = clone(c)
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("get contact: %w", repository.ErrNotFound)
	}
	return clone(c), nil
}

func (s *memStore) FindOwned(ctx context.Context, id, ownerID string) (*model.Contact, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != ownerID {
		return nil, fmt.Errorf("find owned contact: %w", repository.ErrNotFound)
	}
	return c, nil
}

func (s *memStore) Update(_ context.Context, id, ownerID string, fields model.ContactFields) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("update contact: %w", repository.ErrNotFound)
	}
	// user_id 外键
	if !s.owners[ownerID] {
		return nil, fmt.Errorf("update contact: %w", repository.ErrOwnerNotFound)
	}
	_, now := s.tick()
	c.UserID = ownerID
	c.UpdatedAt = now
	c.Apply(fields)
	return clone(c), nil
}

// removeOwner 删除用户，外键级联删除其联系人
func (s *memStore) removeOwner(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, ownerID)
	for id, c := range s.contacts {
		if c.UserID == ownerID {
			delete(s.contacts, id)
		}
	}
}

func (s *memStore) Delete(_ context.Context, id string) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("delete contact: %w", repository.ErrNotFound)
	}
	delete(s.contacts, id)
	return c, nil
}

func (s *memStore) filter(ownerID string, order repository.Order, keep func(*model.Contact) bool) ([]*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]*model.Contact, 0)
	for _, c := range s.contacts {
		if c.UserID == ownerID && keep(c) {
			out = append(out, clone(c))
		}
	}
	switch order {
	case repository.OrderByName:
		slices.SortFunc(out, byName)
	case repository.OrderByCreatedAt:
		slices.SortFunc(out, byCreatedAt)
	}
	return out, nil
}

func (s *memStore) ListByOwner(_ context.Context, ownerID string, order repository.Order) ([]*model.Contact, error) {
	return s.filter(ownerID, order, func(*model.Contact) bool { return true })
}

func (s *memStore) ListByOwnerWithPrefix(_ context.Context, ownerID, prefix string, order repository.Order) ([]*model.Contact, error) {
	return s.filter(ownerID, order, func(c *model.Contact) bool { return strings.HasPrefix(c.Name, prefix) })
}

func (s *memStore) ListByOwnerContaining(_ context.Context, ownerID, substring string, order repository.Order) ([]*model.Contact, error) {
	return s.filter(ownerID, order, func(c *model.Contact) bool { return strings.Contains(c.Name, substring) })
}

func (s *memStore) ListByOwnerCreatedAfter(_ context.Context, ownerID string, after time.Time) ([]*model.Contact, error) {
	return s.filter(ownerID, repository.OrderNone, func(c *model.Contact) bool { return c.CreatedAt.After(after) })
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}

// recordingPublisher 记录收到的事件，err 非空时发布失败
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ContactEventMessage
	err    error
}

func (p *recordingPublisher) PublishContactEvent(_ context.Context, msg model.ContactEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) types() []model.ContactEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ContactEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errStoreDown = errors.New("connection refused")

package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"

	"ContactBook/internal/model"
	"ContactBook/internal/repository"
)

const (
	MsgCurrentNotFound  = "Current contact not found."
	MsgNoNextContact    = "No next contact found."
	MsgNextContactFound = "Next contact found."
	MsgNoNextLetter     = "No contact with the next letter found."
	MsgNextLetterFound  = "Contact with the next letter found."
)

// NavigationResult 导航结果。没有结果不是错误，Contact 为 nil 并附带说明
type NavigationResult struct {
	Contact *model.Contact
	Message string
}

// Navigator 在一个用户的联系人之间顺序跳转，只读
type Navigator struct {
	store repository.ContactStore
}

func NewNavigator(store repository.ContactStore) *Navigator {
	return &Navigator{store: store}
}

// Next 按 created_at 升序返回 current 之后的第一个联系人，created_at 相同时按 id 升序
func (n *Navigator) Next(ctx context.Context, ownerID, currentID string) (NavigationResult, error) {
	current, err := n.current(ctx, currentID)
	if err != nil || current == nil {
		return NavigationResult{Message: MsgCurrentNotFound}, err
	}

	candidates, err := n.store.ListByOwnerCreatedAfter(ctx, ownerID, current.CreatedAt)
	if err != nil {
		return NavigationResult{}, fmt.Errorf("next contact: %w", err)
	}
	if len(candidates) == 0 {
		return NavigationResult{Message: MsgNoNextContact}, nil
	}

	next := slices.MinFunc(candidates, byCreatedAt)
	return NavigationResult{Contact: next, Message: MsgNextContactFound}, nil
}

// SkipToNextLetter 在与 current 首字母相同的联系人中按名字排序，返回 current 的下一个。
// 不会跨到下一个字母。
func (n *Navigator) SkipToNextLetter(ctx context.Context, ownerID, currentID string) (NavigationResult, error) {
	current, err := n.current(ctx, currentID)
	if err != nil || current == nil {
		return NavigationResult{Message: MsgCurrentNotFound}, err
	}

	_, size := utf8.DecodeRuneInString(current.Name)
	if size == 0 {
		return NavigationResult{Message: MsgNoNextLetter}, nil
	}

	group, err := n.store.ListByOwnerWithPrefix(ctx, ownerID, current.Name[:size], repository.OrderNone)
	if err != nil {
		return NavigationResult{}, fmt.Errorf("skip to next letter: %w", err)
	}
	slices.SortFunc(group, byName)

	idx := slices.IndexFunc(group, func(c *model.Contact) bool { return c.ID == current.ID })
	if idx < 0 || idx+1 >= len(group) {
		return NavigationResult{Message: MsgNoNextLetter}, nil
	}

	return NavigationResult{Contact: group[idx+1], Message: MsgNextLetterFound}, nil
}

// current 查询当前联系人；不存在或 id 不合法时返回 (nil, nil)
func (n *Navigator) current(ctx context.Context, id string) (*model.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	c, err := n.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current contact: %w", err)
	}
	return c, nil
}

func byCreatedAt(a, b *model.Contact) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func byName(a, b *model.Contact) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ContactBook/internal/model"
)

// ContactStore 联系人存储契约。
//
// 列表查询只有在传入 Order 时才保证顺序；所有查询只读，写操作以单行为原子粒度。
// 前缀与子串匹配都是对原始字符串的区分大小写比较。
type ContactStore interface {
	Create(ctx context.Context, ownerID string, fields model.ContactFields) (*model.Contact, error)
	GetByID(ctx context.Context, id string) (*model.Contact, error)
	FindOwned(ctx context.Context, id, ownerID string) (*model.Contact, error)
	Update(ctx context.Context, id, ownerID string, fields model.ContactFields) (*model.Contact, error)
	Delete(ctx context.Context, id string) (*model.Contact, error)
	ListByOwner(ctx context.Context, ownerID string, order Order) ([]*model.Contact, error)
	ListByOwnerWithPrefix(ctx context.Context, ownerID, prefix string, order Order) ([]*model.Contact, error)
	ListByOwnerContaining(ctx context.Context, ownerID, substring string, order Order) ([]*model.Contact, error)
	ListByOwnerCreatedAfter(ctx context.Context, ownerID string, after time.Time) ([]*model.Contact, error)
}

type ContactRepository struct {
	db     *gorm.DB
	owners OwnerDirectory
	now    func() time.Time
	newID  func() string
}

type ContactOption func(*ContactRepository)

// WithClock 替换 created_at/updated_at 的时间来源
func WithClock(now func() time.Time) ContactOption {
	return func(r *ContactRepository) { r.now = now }
}

// WithIDGenerator 替换主键生成方式
func WithIDGenerator(newID func() string) ContactOption {
	return func(r *ContactRepository) { r.newID = newID }
}

// WithOwnerDirectory 替换用户存在性检查（例如带缓存的实现）
func WithOwnerDirectory(owners OwnerDirectory) ContactOption {
	return func(r *ContactRepository) { r.owners = owners }
}

func NewContactRepository(db *gorm.DB, opts ...ContactOption) *ContactRepository {
	r := &ContactRepository{
		db:     db,
		owners: NewUserRepository(db),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ContactStore = (*ContactRepository)(nil)

func (r *ContactRepository) Create(ctx context.Context, ownerID string, fields model.ContactFields) (*model.Contact, error) {
	exists, err := r.owners.Exists(ctx, ownerID)
	if err != nil {
		return nil, translate("create contact", err)
	}
	if !exists {
		return nil, translate("create contact", ErrOwnerNotFound)
	}

	now := r.now().UTC()
	contact := &model.Contact{
		ID:        r.newID(),
		UserID:    ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	contact.Apply(fields)

	if err := r.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, translate("create contact", err)
	}
	return contact, nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&contact).Error; err != nil {
		return nil, translate("get contact", err)
	}
	return &contact, nil
}

// FindOwned 按 (id, user_id) 联合条件查询
func (r *ContactRepository) FindOwned(ctx context.Context, id, ownerID string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Take(&contact).Error
	if err != nil {
		return nil, translate("find owned contact", err)
	}
	return &contact, nil
}

// Update 整体覆盖可写字段，并把 user_id 写为 ownerID
func (r *ContactRepository) Update(ctx context.Context, id, ownerID string, fields model.ContactFields) (*model.Contact, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Contact{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"user_id":    ownerID,
			"name":       fields.Name,
			"email":      fields.Email,
			"phone":      fields.Phone,
			"notes":      fields.Notes,
			"updated_at": r.now().UTC(),
		})
	if result.Error != nil {
		return nil, translate("update contact", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, translate("update contact", ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Delete 删除并返回被删除的行
func (r *ContactRepository) Delete(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&contact).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Contact{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate("delete contact", err)
	}
	return &contact, nil
}

func (r *ContactRepository) ListByOwner(ctx context.Context, ownerID string, order Order) ([]*model.Contact, error) {
	return r.list(ctx, "list contacts", order, ownedBy(ownerID))
}

func (r *ContactRepository) ListByOwnerWithPrefix(ctx context.Context, ownerID, prefix string, order Order) ([]*model.Contact, error) {
	return r.list(ctx, "list contacts by prefix", order, ownedBy(ownerID), namePrefix(prefix))
}

func (r *ContactRepository) ListByOwnerContaining(ctx context.Context, ownerID, substring string, order Order) ([]*model.Contact, error) {
	return r.list(ctx, "list contacts by name", order, ownedBy(ownerID), r.nameContains(substring))
}

func (r *ContactRepository) ListByOwnerCreatedAfter(ctx context.Context, ownerID string, after time.Time) ([]*model.Contact, error) {
	return r.list(ctx, "list contacts created after", OrderNone, ownedBy(ownerID), createdAfter(after))
}

func (r *ContactRepository) list(ctx context.Context, op string, order Order, scopes ...func(*gorm.DB) *gorm.DB) ([]*model.Contact, error) {
	contacts := make([]*model.Contact, 0)
	query := order.apply(r.db.WithContext(ctx).Scopes(scopes...))
	if err := query.Find(&contacts).Error; err != nil {
		return nil, translate(op, err)
	}
	return contacts, nil
}

func ownedBy(ownerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", ownerID)
	}
}

// namePrefix 用 substr 做精确前缀比较，LIKE 在 SQLite 下不区分大小写且需要转义
func namePrefix(prefix string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("substr(name, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
	}
}

func (r *ContactRepository) nameContains(substring string) func(*gorm.DB) *gorm.DB {
	fn := "strpos"
	if r.db.Dialector.Name() == "sqlite" {
		fn = "instr"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fn+"(name, ?) > 0", substring)
	}
}

func createdAfter(after time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at > ?", after.UTC())
	}
}

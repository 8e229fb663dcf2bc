package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ContactBook/internal/model"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// tickingClock 每次调用前进一秒，保证 created_at 严格递增
func tickingClock() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return epoch.Add(time.Duration(n) * time.Second)
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Contact{}))

	users := NewUserRepository(db)
	for _, id := range []string{alice, bob} {
		require.NoError(t, users.Create(context.Background(), &model.User{ID: id, Name: id[:4], Email: id + "@example.com"}))
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestRepo(t *testing.T) *ContactRepository {
	return NewContactRepository(openTestDB(t), WithClock(tickingClock()), WithIDGenerator(sequentialIDs()))
}

func mustCreate(t *testing.T, r *ContactRepository, owner, name string) *model.Contact {
	t.Helper()
	c, err := r.Create(context.Background(), owner, model.ContactFields{Name: name})
	require.NoError(t, err)
	return c
}

func names(contacts []*model.Contact) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.Name)
	}
	return out
}

func TestContactRepository_Create(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	email := "ann@example.com"
	c, err := r.Create(ctx, alice, model.ContactFields{Name: "Ann", Email: &email, Phone: "555-0100"})
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", c.ID)
	assert.Equal(t, alice, c.UserID)
	assert.Equal(t, epoch.Add(time.Second), c.CreatedAt)

	got, err := r.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)
	assert.Equal(t, "555-0100", got.Phone)
	assert.True(t, got.CreatedAt.Equal(c.CreatedAt))
}

func TestContactRepository_CreateUnknownOwner(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Create(context.Background(), "33333333-3333-3333-3333-333333333333", model.ContactFields{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestContactRepository_CreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	email := "dup@example.com"
	_, err := r.Create(ctx, alice, model.ContactFields{Name: "One", Email: &email})
	require.NoError(t, err)

	_, err = r.Create(ctx, alice, model.ContactFields{Name: "Two", Email: &email})
	assert.ErrorIs(t, err, ErrConstraint)

	// 不同用户可以使用相同邮箱
	_, err = r.Create(ctx, bob, model.ContactFields{Name: "Three", Email: &email})
	assert.NoError(t, err)
}

func TestContactRepository_GetByIDMissing(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.GetByID(context.Background(), "99999999-9999-9999-9999-999999999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactRepository_FindOwned(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	c := mustCreate(t, r, alice, "Ann")

	got, err := r.FindOwned(ctx, c.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = r.FindOwned(ctx, c.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactRepository_UpdateStampsOwner(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	c := mustCreate(t, r, alice, "Ann")

	updated, err := r.Update(ctx, c.ID, bob, model.ContactFields{Name: "Annie", Notes: "moved"})
	require.NoError(t, err)
	assert.Equal(t, bob, updated.UserID)
	assert.Equal(t, "Annie", updated.Name)
	assert.Equal(t, "moved", updated.Notes)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(c.CreatedAt))
}

func TestContactRepository_UpdateMissing(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Update(context.Background(), "99999999-9999-9999-9999-999999999999", alice, model.ContactFields{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

// staleOwners 模拟过期的存在性缓存，总是回答“存在”
type staleOwners struct{}

func (staleOwners) Exists(context.Context, string) (bool, error) { return true, nil }

func TestContactRepository_CreateRejectedByOwnerForeignKey(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := NewContactRepository(db, WithOwnerDirectory(staleOwners{}), WithClock(tickingClock()), WithIDGenerator(sequentialIDs()))

	_, err := r.Create(ctx, "33333333-3333-3333-3333-333333333333", model.ContactFields{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	// 查询之后用户被删除
	require.NoError(t, db.Where("id = ?", alice).Delete(&model.User{}).Error)
	_, err = r.Create(ctx, alice, model.ContactFields{Name: "Orphan"})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	var count int64
	require.NoError(t, db.Model(&model.Contact{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestContactRepository_UpdateToUnknownOwner(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	c := mustCreate(t, r, alice, "Ann")

	_, err := r.Update(ctx, c.ID, "33333333-3333-3333-3333-333333333333", model.ContactFields{Name: "Moved"})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	got, err := r.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got.UserID)
	assert.Equal(t, "Ann", got.Name)
}

func TestContactRepository_DeletingOwnerRemovesContacts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := NewContactRepository(db, WithClock(tickingClock()), WithIDGenerator(sequentialIDs()))
	mustCreate(t, r, alice, "Ann")
	mustCreate(t, r, bob, "Bea")

	require.NoError(t, db.Where("id = ?", alice).Delete(&model.User{}).Error)

	got, err := r.ListByOwner(ctx, alice, OrderNone)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ListByOwner(ctx, bob, OrderNone)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bea"}, names(got))
}

func TestContactRepository_Delete(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	c := mustCreate(t, r, alice, "Ann")

	deleted, err := r.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", deleted.Name)

	_, err = r.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Delete(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	mustCreate(t, r, alice, "Carol")
	mustCreate(t, r, alice, "ann")
	mustCreate(t, r, alice, "Bob")
	mustCreate(t, r, bob, "Zed")

	byName, err := r.ListByOwner(ctx, alice, OrderByName)
	require.NoError(t, err)
	// 字节序：大写字母排在小写之前
	assert.Equal(t, []string{"Bob", "Carol", "ann"}, names(byName))

	byCreated, err := r.ListByOwner(ctx, alice, OrderByCreatedAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol", "ann", "Bob"}, names(byCreated))

	empty, err := r.ListByOwner(ctx, "33333333-3333-3333-3333-333333333333", OrderNone)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestContactRepository_ListByOwnerWithPrefix(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	mustCreate(t, r, alice, "Alan")
	mustCreate(t, r, alice, "alex")
	mustCreate(t, r, alice, "Bea")
	mustCreate(t, r, alice, "Ál")
	mustCreate(t, r, bob, "Amy")

	got, err := r.ListByOwnerWithPrefix(ctx, alice, "A", OrderByName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alan"}, names(got))

	got, err = r.ListByOwnerWithPrefix(ctx, alice, "Á", OrderByName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ál"}, names(got))

	got, err = r.ListByOwnerWithPrefix(ctx, alice, "%", OrderNone)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContactRepository_ListByOwnerContaining(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	mustCreate(t, r, alice, "Johnny")
	mustCreate(t, r, alice, "Ann Johnson")
	mustCreate(t, r, alice, "john")
	mustCreate(t, r, bob, "John")

	got, err := r.ListByOwnerContaining(ctx, alice, "John", OrderByName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann Johnson", "Johnny"}, names(got))

	got, err = r.ListByOwnerContaining(ctx, alice, "_", OrderNone)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContactRepository_ListByOwnerCreatedAfter(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	first := mustCreate(t, r, alice, "First")
	mustCreate(t, r, alice, "Second")
	mustCreate(t, r, bob, "Other")
	mustCreate(t, r, alice, "Third")

	got, err := r.ListByOwnerCreatedAfter(ctx, alice, first.CreatedAt)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Second", "Third"}, names(got))
}

func newMockRepo(t *testing.T) (*ContactRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewContactRepository(db), mock
}

func TestContactRepository_PostgresContainsUsesStrpos(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE user_id = $1 AND strpos(name, $2) > 0 ORDER BY name ASC,id ASC`)).
		WithArgs(alice, "Jo").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name"}).
			AddRow("c1", alice, "Joan"))

	got, err := r.ListByOwnerContaining(context.Background(), alice, "Jo", OrderByName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Joan"}, names(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_PostgresPrefixUsesSubstr(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE user_id = $1 AND substr(name, 1, $2) = $3`)).
		WithArgs(alice, 1, "J").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name"}))

	got, err := r.ListByOwnerWithPrefix(context.Background(), alice, "J", OrderNone)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_PostgresQueryError(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE id = $1`)).
		WillReturnError(fmt.Errorf("connection reset by peer"))

	_, err := r.GetByID(context.Background(), "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get contact")
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate("update contact", gorm.ErrForeignKeyViolated), ErrOwnerNotFound)
	assert.ErrorIs(t, translate("create contact", gorm.ErrDuplicatedKey), ErrConstraint)
	assert.ErrorIs(t, translate("get contact", gorm.ErrRecordNotFound), ErrNotFound)
	assert.NoError(t, translate("get contact", nil))
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ContactBook/config"
	"ContactBook/internal/handler"
	"ContactBook/internal/middleware"
	"ContactBook/internal/model"
	"ContactBook/internal/repository"
	"ContactBook/internal/service"
	"ContactBook/pkg/token"
	"ContactBook/storage/database"
)

const alice = "11111111-1111-1111-1111-111111111111"

func newRouter(t *testing.T, checks map[string]handler.HealthCheck) *route.Engine {
	t.Helper()

	config.Cfg.JWTSecret = "router-test-secret"
	config.Cfg.JWTExpireMinutes = 5
	require.NoError(t, token.Init())
	require.NoError(t, middleware.Init())

	db, err := gorm.Open(sqlite.Open("file:router_test?mode=memory&cache=shared&_foreign_keys=1"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.MigrateDB(db))
	require.NoError(t, db.Where("1 = 1").Delete(&model.Contact{}).Error)
	require.NoError(t, db.Where("1 = 1").Delete(&model.User{}).Error)
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(),
		&model.User{ID: alice, Name: "alice", Email: "alice@example.com"}))

	contacts := handler.NewContactHandler(service.NewContactService(repository.NewContactRepository(db)))
	e := route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	Register(e, contacts, checks)
	return e
}

func bearer(t *testing.T) ut.Header {
	t.Helper()
	signed, _, err := token.GenerateAccessToken(alice)
	require.NoError(t, err)
	return ut.Header{Key: "Authorization", Value: "Bearer " + signed}
}

func TestRegister_HealthEndpoints(t *testing.T) {
	e := newRouter(t, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})

	resp := ut.PerformRequest(e, http.MethodGet, "/healthz", nil).Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	resp = ut.PerformRequest(e, http.MethodGet, "/readyz", nil).Result()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Contains(t, body.Checks["redis"], "connection refused")
}

func TestRegister_ContactsRequireToken(t *testing.T) {
	e := newRouter(t, nil)

	resp := ut.PerformRequest(e, http.MethodGet, "/v1/contacts?userId="+alice, nil).Result()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestRegister_ContactRoundTrip(t *testing.T) {
	e := newRouter(t, nil)
	auth := bearer(t)

	body := `{"name":"Ann"}`
	resp := ut.PerformRequest(e, http.MethodPost, "/v1/contacts?userId="+alice,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
		auth, ut.Header{Key: "Content-Type", Value: "application/json"}).Result()
	require.Equal(t, http.StatusCreated, resp.StatusCode(), string(resp.Body()))

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(resp.Body(), &created))
	require.NotEmpty(t, created.Data.ID)
	assert.NotEmpty(t, created.Meta["request_id"])

	// GET /:id 的身份来自 token
	resp = ut.PerformRequest(e, http.MethodGet, "/v1/contacts/"+created.Data.ID, nil, auth).Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	// 静态路由优先于 /:id
	resp = ut.PerformRequest(e, http.MethodGet, "/v1/contacts/search/letter?userId="+alice+"&letter=A", nil, auth).Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"name":"Ann"`)

	resp = ut.PerformRequest(e, http.MethodGet, "/v1/contacts/skip/"+created.Data.ID+"?userId="+alice, nil, auth).Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), service.MsgNoNextLetter)

	resp = ut.PerformRequest(e, http.MethodDelete, "/v1/contacts/"+created.Data.ID+"?userId="+alice, nil, auth).Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

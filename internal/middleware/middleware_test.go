package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/hertz/pkg/app"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContactBook/config"
	"ContactBook/pkg/logger"
	"ContactBook/pkg/response"
	"ContactBook/pkg/token"
)

func newEngine() *route.Engine {
	return route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
}

func decodeError(t *testing.T, body []byte) response.ErrorDetail {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}

func setupAuth(t *testing.T) {
	t.Helper()
	config.Cfg.JWTSecret = "middleware-test-secret"
	config.Cfg.JWTExpireMinutes = 5
	require.NoError(t, token.Init())
	require.NoError(t, Init())
}

func TestAuthMiddleware(t *testing.T) {
	setupAuth(t)

	e := newEngine()
	e.GET("/me", AuthMiddleware(), func(ctx context.Context, c *app.RequestContext) {
		uid, ok := GetUserID(ctx, c)
		if !ok {
			c.String(http.StatusTeapot, "no identity")
			return
		}
		c.String(http.StatusOK, uid)
	})

	signed, expiresAt, err := token.GenerateAccessToken("11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	t.Run("valid bearer token", func(t *testing.T) {
		w := ut.PerformRequest(e, http.MethodGet, "/me", nil, ut.Header{Key: "Authorization", Value: "Bearer " + signed})
		resp := w.Result()
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "11111111-1111-1111-1111-111111111111", string(resp.Body()))
	})

	t.Run("token in query", func(t *testing.T) {
		w := ut.PerformRequest(e, http.MethodGet, "/me?token="+signed, nil)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	})

	t.Run("missing token", func(t *testing.T) {
		w := ut.PerformRequest(e, http.MethodGet, "/me", nil)
		resp := w.Result()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp.Body()).Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		w := ut.PerformRequest(e, http.MethodGet, "/me", nil, ut.Header{Key: "Authorization", Value: "Bearer " + signed + "x"})
		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode())
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	e := newEngine()
	e.Use(RequestIDMiddleware())
	e.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, logger.RequestID(ctx))
	})

	w := ut.PerformRequest(e, http.MethodGet, "/ping", nil, ut.Header{Key: RequestIDHeader, Value: "upstream-1"})
	resp := w.Result()
	assert.Equal(t, "upstream-1", string(resp.Body()))
	assert.Equal(t, "upstream-1", resp.Header.Get(RequestIDHeader))

	w = ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	resp = w.Result()
	generated := resp.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, string(resp.Body()))
}

func TestRecoverMiddleware(t *testing.T) {
	e := newEngine()
	e.Use(RecoverMiddlewareWithConfig(RecoverConfig{StackTraceLevel: "none"}))
	e.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	w := ut.PerformRequest(e, http.MethodGet, "/boom", nil)
	resp := w.Result()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

	detail := decodeError(t, resp.Body())
	assert.Equal(t, "INTERNAL_ERROR", detail.Code)
	assert.Nil(t, detail.Details)
}

func TestRecoverMiddlewareExposeDetails(t *testing.T) {
	e := newEngine()
	e.Use(RecoverMiddlewareWithConfig(RecoverConfig{StackTraceLevel: "simple", ExposeDetails: true}))
	e.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	w := ut.PerformRequest(e, http.MethodGet, "/boom", nil)
	detail := decodeError(t, w.Result().Body())
	assert.Equal(t, "boom", detail.Details["panic"])
	assert.NotEmpty(t, detail.Details["stack"])
}

func TestCORSMiddleware(t *testing.T) {
	e := newEngine()
	e.Use(CORSMiddleware())
	e.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "pong")
	})

	w := ut.PerformRequest(e, http.MethodOptions, "/ping", nil, ut.Header{Key: "Origin", Value: "https://app.example.com"})
	resp := w.Result()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	w = ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	resp = w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newEngine()
	e.Use(RateLimitMiddleware(client, RateLimitConfig{
		Window:        time.Minute,
		MaxRequests:   2,
		KeyPrefix:     "test:rate",
		ByIP:          true,
		BlockDuration: time.Minute,
	}))
	e.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "pong")
	})

	for i := 0; i < 2; i++ {
		w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
		resp := w.Result()
		require.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	resp := w.Result()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode())
	assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, resp.Body()).Code)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	// 超限后写入封禁键，封禁期间直接拒绝
	var blocked []string
	for _, k := range mr.Keys() {
		if strings.HasSuffix(k, ":block") {
			blocked = append(blocked, k)
		}
	}
	require.Len(t, blocked, 1)
	assert.True(t, mr.TTL(blocked[0]) > 0)

	w = ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode())

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(blocked[0]))
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	e := newEngine()
	e.Use(RateLimitMiddleware(client, RateLimitConfig{Window: time.Second, MaxRequests: 1, ByIP: true}))
	e.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "pong")
	})

	w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
}

func TestDefaultRateLimitConfig(t *testing.T) {
	saved := config.Cfg
	t.Cleanup(func() { config.Cfg = saved })

	config.Cfg.RateLimitRPS = 20
	config.Cfg.RateLimitBlockSeconds = 30
	cfg := DefaultRateLimitConfig()
	assert.Equal(t, time.Second, cfg.Window)
	assert.Equal(t, 20, cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.BlockDuration)

	config.Cfg.RateLimitBlockSeconds = 0
	assert.Zero(t, DefaultRateLimitConfig().BlockDuration)
}

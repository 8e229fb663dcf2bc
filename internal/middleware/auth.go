package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"ContactBook/pkg/errors"
	"ContactBook/pkg/response"
	"ContactBook/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	// 使用 token 包中共享的生成器
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return errors.ErrTokenGeneratorNotInitialized
	}

	mw, err := NewAuthMiddleware(sharedGenerator)
	if err != nil {
		return err
	}
	authMiddleware = mw
	return nil
}

// NewAuthMiddleware 基于共享生成器的密钥和时钟创建校验中间件
func NewAuthMiddleware(generator *jwt.HertzJWTMiddleware) (*jwt.HertzJWTMiddleware, error) {
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "ContactBook API",
		Key:         generator.Key,
		Timeout:     generator.Timeout,
		MaxRefresh:  generator.MaxRefresh,
		IdentityKey: generator.IdentityKey,
		TimeFunc:    generator.TimeFunc,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			uid, ok := claims[IdentityKey].(string)
			if !ok || uid == "" {
				return nil
			}
			return uid
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.Error(ctx, c, errors.Unauthorized.WithMessage(message))
		},

		TokenLookup:   "header: Authorization, query: token, cookie: jwt",
		TokenHeadName: "Bearer",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth middleware: %w", err)
	}
	return mw, nil
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetUserID 从请求上下文中获取 token 里的用户 ID
func GetUserID(ctx context.Context, c *app.RequestContext) (string, bool) {
	userID, exists := c.Get(IdentityKey)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

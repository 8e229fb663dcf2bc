package router

import (
	"github.com/cloudwego/hertz/pkg/route"

	"ContactBook/internal/handler"
	"ContactBook/internal/middleware"
)

// Register 挂载全局中间件和路由，checks 为 /readyz 使用的依赖探活
func Register(r *route.Engine, contacts *handler.ContactHandler, checks map[string]handler.HealthCheck) {
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RecoverMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.OpenTelemetryMiddleware())

	r.GET("/healthz", handler.Healthz)
	r.GET("/readyz", handler.Readyz(checks))

	v1 := r.Group("/v1")

	// 联系人路由，限流按 token 中的用户计数，需挂在鉴权之后
	group := v1.Group("/contacts")
	group.Use(middleware.AuthMiddleware(), middleware.GeneralRateLimitMiddleware())
	{
		group.POST("", contacts.CreateContact)
		group.GET("", contacts.ListContacts)
		group.GET("/search/letter", contacts.SearchByLetter)
		group.GET("/search/name", contacts.SearchByName)
		group.GET("/next/:currentContactId", contacts.NextContact)
		group.GET("/skip/:currentContactId", contacts.SkipToNextLetter)
		group.GET("/:id", contacts.GetContact)
		group.PUT("/:id", contacts.UpdateContact)
		group.DELETE("/:id", contacts.DeleteContact)
	}
}

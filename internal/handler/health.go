package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
)

// HealthCheck 依赖探活函数
type HealthCheck func(ctx context.Context) error

// Healthz 存活探针，不访问依赖
// GET /healthz
func Healthz(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, utils.H{"status": "ok"})
}

// Readyz 逐个执行依赖探活，任一失败返回 503
// GET /readyz
func Readyz(checks map[string]HealthCheck) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		c.JSON(status, utils.H{"checks": results})
	}
}

package controllers

import (
	"net/http"

	"github.com/aihub/docsearch/internal/middleware"
)

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "Document Search API"})
}

// HealthController 依赖健康状态
type HealthController struct {
	BaseController
	Manager *middleware.MiddlewareManager
}

// NewHealthController 创建健康检查控制器
func NewHealthController(manager *middleware.MiddlewareManager) *HealthController {
	return &HealthController{Manager: manager}
}

// Health 必需依赖不健康时返回503
func (c *HealthController) Health() {
	if c.Manager == nil {
		c.JSON(http.StatusOK, map[string]string{"status": middleware.StatusHealthy})
		return
	}

	components, overall := c.Manager.CheckHealth(c.Ctx.Request.Context())
	status := http.StatusOK
	if overall == middleware.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}

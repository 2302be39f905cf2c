package controllers

import (
	"net/http"

	"github.com/aihub/docsearch/internal/services"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

// GenerateRequest 生成请求，Context 为检索得到的段落
type GenerateRequest struct {
	Query   string   `json:"query" validate:"required"`
	Context []string `json:"context" validate:"required,min=1"`
}

// SearchController 检索与问答
type SearchController struct {
	BaseController
	Service *services.DocumentService
}

// NewSearchController 创建检索控制器
func NewSearchController(docService *services.DocumentService) *SearchController {
	return &SearchController{Service: docService}
}

// Search 检索分块
func (c *SearchController) Search() {
	var req SearchRequest
	if err := c.BindJSON(&req); err != nil {
		c.RespondError(err)
		return
	}

	results, err := c.Service.Search(c.Ctx.Request.Context(), req.Query, req.Limit)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Generate 基于给定上下文生成回答
func (c *SearchController) Generate() {
	var req GenerateRequest
	if err := c.BindJSON(&req); err != nil {
		c.RespondError(err)
		return
	}

	result, err := c.Service.Generate(c.Ctx.Request.Context(), req.Query, req.Context)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Ask 检索后生成回答
func (c *SearchController) Ask() {
	var req SearchRequest
	if err := c.BindJSON(&req); err != nil {
		c.RespondError(err)
		return
	}

	result, err := c.Service.Ask(c.Ctx.Request.Context(), req.Query, req.Limit)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

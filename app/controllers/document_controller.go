package controllers

import (
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/services"
)

// DocumentController 文档上传与列表
type DocumentController struct {
	BaseController
	Service       *services.DocumentService
	MaxUploadSize int64
}

// NewDocumentController 创建文档控制器
func NewDocumentController(docService *services.DocumentService, maxUploadSize int64) *DocumentController {
	return &DocumentController{
		Service:       docService,
		MaxUploadSize: maxUploadSize,
	}
}

// Upload 接收multipart字段 file 中的PDF并入库
func (c *DocumentController) Upload() {
	file, header, err := c.GetFile("file")
	if err != nil {
		c.RespondError(apperrors.NewInvalidArgumentError("No file provided").WithCause(err))
		return
	}
	defer file.Close()

	if c.MaxUploadSize > 0 && header.Size > c.MaxUploadSize {
		c.JSONError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the maximum upload size of %d bytes", c.MaxUploadSize))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.RespondError(apperrors.NewInvalidArgumentError("failed to read uploaded file").WithCause(err))
		return
	}

	result, err := c.Service.Upload(c.Ctx.Request.Context(), header.Filename, data)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List 按上传时间倒序列出文档
func (c *DocumentController) List() {
	documents, err := c.Service.ListDocuments(c.Ctx.Request.Context())
	if err != nil {
		c.RespondError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"documents": documents,
	})
}

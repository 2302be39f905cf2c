package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	validate   = validator.New()
	translator = apperrors.NewErrorTranslator()
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// RespondError 按AppError的HTTP状态码输出错误，5xx记录日志
func (c *BaseController) RespondError(err error) {
	appErr := translator.Translate(err)
	status := appErr.HTTPCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Ctx.Input.URL()),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}

	body := map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	c.JSON(status, body)
}

// BindJSON 解析并校验JSON请求体
func (c *BaseController) BindJSON(dest interface{}) error {
	body := c.Ctx.Input.RequestBody
	if len(body) == 0 && c.Ctx.Request.Body != nil {
		data, err := io.ReadAll(c.Ctx.Request.Body)
		if err != nil {
			return apperrors.NewValidationError("failed to read request body").WithCause(err)
		}
		body = data
	}
	if len(body) == 0 {
		return apperrors.NewValidationError("request body is required")
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return apperrors.NewValidationError("invalid JSON body").WithCause(err)
	}
	return validate.Struct(dest)
}

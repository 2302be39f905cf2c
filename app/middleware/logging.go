package middleware

import (
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

const requestStartKey = "request_start"

// RequestStart 记录请求开始时间，与 RequestLogger 配对使用
func RequestStart() web.FilterFunc {
	return func(ctx *context.Context) {
		ctx.Input.SetData(requestStartKey, time.Now())
	}
}

// RequestLogger 请求完成日志，4xx记为warn，5xx记为error
func RequestLogger(log *zap.Logger) web.FilterFunc {
	return func(ctx *context.Context) {
		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = 200
		}

		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", status),
			zap.String("remote_addr", ctx.Input.IP()),
		}
		if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", time.Since(start)))
		}

		switch {
		case status >= 500:
			log.Error("Request completed", fields...)
		case status >= 400:
			log.Warn("Request completed", fields...)
		default:
			log.Debug("Request completed", fields...)
		}
	}
}

// SecurityHeaders 常用安全响应头
func SecurityHeaders() web.FilterFunc {
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	return func(ctx *context.Context) {
		for key, value := range headers {
			ctx.Output.Header(key, value)
		}
	}
}

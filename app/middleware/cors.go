package middleware

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
)

// CORSFilter CORS过滤器，allowedOrigins 为空时允许任意来源
func CORSFilter(allowedOrigins []string) web.FilterFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(ctx *context.Context) {
		origin := ctx.Input.Header("Origin")
		if origin != "" && (len(allowed) == 0 || allowed[origin]) {
			ctx.Output.Header("Access-Control-Allow-Origin", origin)
			ctx.Output.Header("Vary", "Origin")
		}

		ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Requested-With")
		ctx.Output.Header("Access-Control-Max-Age", "3600")

		// 预检请求直接返回
		if ctx.Input.Method() == http.MethodOptions {
			ctx.Output.SetStatus(http.StatusNoContent)
			ctx.Output.Body([]byte(""))
		}
	}
}

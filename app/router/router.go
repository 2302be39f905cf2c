package router

import (
	"github.com/aihub/docsearch/app/controllers"
	"github.com/aihub/docsearch/app/middleware"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Controllers 路由使用的控制器
type Controllers struct {
	Document *controllers.DocumentController
	Search   *controllers.SearchController
	Health   *controllers.HealthController
}

// Options 路由选项
type Options struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Init 从DI容器创建控制器并注册到默认应用，需在配置加载后调用
func Init(container *dig.Container, opts Options) error {
	factory := controllers.NewControllerFactory(container)

	document, err := factory.CreateDocumentController()
	if err != nil {
		return err
	}
	search, err := factory.CreateSearchController()
	if err != nil {
		return err
	}
	health, err := factory.CreateHealthController()
	if err != nil {
		return err
	}

	return Register(web.BeeApp.Handlers, Controllers{
		Document: document,
		Search:   search,
		Health:   health,
	}, opts)
}

// Register 注册过滤器与路由
func Register(h *web.ControllerRegister, c Controllers, opts Options) error {
	before := []web.FilterFunc{
		middleware.RequestStart(),
		middleware.CORSFilter(opts.AllowedOrigins),
		middleware.SecurityHeaders(),
	}
	for _, filter := range before {
		if err := h.InsertFilter("/*", web.BeforeRouter, filter); err != nil {
			return err
		}
	}
	if opts.Logger != nil {
		// 响应已输出后仍需记录日志
		if err := h.InsertFilter("/*", web.FinishRouter, middleware.RequestLogger(opts.Logger), web.WithReturnOnOutput(false)); err != nil {
			return err
		}
	}

	root := &controllers.RootController{}
	h.Add("/", root, web.WithRouterMethods(root, "get:Index"))
	h.Add("/health", c.Health, web.WithRouterMethods(c.Health, "get:Health"))

	metrics := &controllers.MetricsController{}
	h.Add("/metrics", metrics, web.WithRouterMethods(metrics, "get:Metrics"))

	h.Add("/upload", c.Document, web.WithRouterMethods(c.Document, "post:Upload"))
	h.Add("/documents", c.Document, web.WithRouterMethods(c.Document, "get:List"))

	h.Add("/search", c.Search, web.WithRouterMethods(c.Search, "post:Search"))
	h.Add("/generate", c.Search, web.WithRouterMethods(c.Search, "post:Generate"))
	h.Add("/ask", c.Search, web.WithRouterMethods(c.Search, "post:Ask"))

	return nil
}

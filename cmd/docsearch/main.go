package main

import (
	"log"
	"strconv"

	"github.com/aihub/docsearch/app/bootstrap"
	"github.com/aihub/docsearch/app/router"
	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	cfg := config.AppConfig
	if err := router.Init(app.Container, router.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.GetLogger(),
	}); err != nil {
		log.Fatalf("failed to register routes: %v", err)
	}

	// Beego全局设置
	web.BConfig.AppName = "DocSearch"
	web.BConfig.CopyRequestBody = true
	web.BConfig.MaxMemory = cfg.Server.MaxUploadSize
	web.BConfig.MaxUploadSize = cfg.Server.MaxUploadSize
	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		log.Fatalf("invalid server port %q: %v", cfg.Server.Port, err)
	}
	web.BConfig.Listen.HTTPPort = port

	logger.Info("Starting DocSearch service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}

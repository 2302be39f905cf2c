package bootstrap

import (
	"context"
	"log"

	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/di"
	"github.com/aihub/docsearch/internal/knowledge"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Container *dig.Container

	cancel       context.CancelFunc
	cleanupTasks []func() error
}

// Init bootstraps configuration, logger and the dependency container.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	if err := knowledge.SetPDFLicense(config.AppConfig.Knowledge.PDFLicenseKey); err != nil {
		logger.Warn("Failed to set PDF license key", zap.Error(err))
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Container: container, cancel: cancel}

	// 后端在此处建立连接，数据库不可用时启动失败
	err := container.Invoke(func(backends *di.Backends, integrations *di.Integrations) {
		if backends.Database != nil {
			backends.Database.StartMonitoring(ctx)
		}
		if integrations.CacheHealth != nil {
			go integrations.CacheHealth.Start(ctx)
		}
		app.cleanupTasks = append(app.cleanupTasks, func() error {
			backends.Close()
			return nil
		}, func() error {
			integrations.Close()
			return nil
		})
	})
	if err != nil {
		cancel()
		return nil, err
	}

	if config.Watch() {
		config.OnChange(func(cfg *config.Config) {
			logger.Info("Configuration file changed; restart to apply connection settings",
				zap.String("env", cfg.Server.Env))
		})
	}

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aihub/docsearch/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseWrapper 数据库连接、迁移、健康检查与指标的组合
type DatabaseWrapper struct {
	db            *gorm.DB
	sqlDB         *sql.DB
	vectorEnabled bool
	healthChecker *HealthChecker
	metrics       *MetricsCollector
	logger        *logrus.Logger
}

// NewDatabase 连接数据库、执行迁移并探测pgvector
func NewDatabase(cfg *config.Config) (*DatabaseWrapper, error) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if cfg.Server.Env == "development" {
		log.SetLevel(logrus.DebugLevel)
	}

	logLevel := logger.Warn
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	}
	db, sqlDB, err := OpenPostgres(cfg.Database, logLevel)
	if err != nil {
		return nil, err
	}

	metrics := NewMetricsCollector(sqlDB, log)

	migrator, err := OpenMigrationManager(cfg.Database.URL, cfg.Database.MigrationsPath, log)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := migrator.WithMetrics(metrics).Up(); err != nil {
		migrator.Close()
		sqlDB.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	migrator.Close()

	vectorEnabled := false
	if cfg.Knowledge.VectorStore.Provider == "postgres" {
		vectorEnabled = EnableVectorColumn(db, cfg.Knowledge.Embedding.Dimensions, log)
	}

	return &DatabaseWrapper{
		db:            db,
		sqlDB:         sqlDB,
		vectorEnabled: vectorEnabled,
		healthChecker: NewDBHealthChecker(sqlDB, log),
		metrics:       metrics,
		logger:        log,
	}, nil
}

// GetDB 获取数据库连接
func (d *DatabaseWrapper) GetDB() *gorm.DB {
	return d.db
}

// VectorEnabled 是否启用了pgvector列
func (d *DatabaseWrapper) VectorEnabled() bool {
	return d.vectorEnabled
}

// Logger 数据库组件日志
func (d *DatabaseWrapper) Logger() *logrus.Logger {
	return d.logger
}

// Close 关闭数据库连接
func (d *DatabaseWrapper) Close() error {
	if d.healthChecker != nil {
		d.healthChecker.Stop()
	}
	if d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

// HealthCheck 优先使用后台检查结果，不健康时直接Ping
func (d *DatabaseWrapper) HealthCheck(ctx context.Context) error {
	if d.healthChecker != nil && d.healthChecker.IsHealthy() {
		return nil
	}
	if d.sqlDB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return d.healthChecker.Check(ctx)
}

// StartMonitoring 启动健康检查和指标收集
func (d *DatabaseWrapper) StartMonitoring(ctx context.Context) {
	if d.healthChecker != nil {
		go d.healthChecker.Start(ctx)
	}
	if d.metrics != nil {
		d.metrics.Start(ctx)
	}
}

// GetHealthStatus 获取健康状态
func (d *DatabaseWrapper) GetHealthStatus() HealthCheckResult {
	return d.healthChecker.GetHealthResult()
}

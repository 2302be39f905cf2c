package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// 连接池与迁移指标，进程内只注册一次
var (
	dbConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docsearch_db_connections",
			Help: "Database connection pool statistics",
		},
		[]string{"state"}, // idle, in_use, open, wait_count
	)

	dbMigrationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_db_migrations_total",
			Help: "Total number of migration runs",
		},
		[]string{"operation", "status"},
	)

	dbMigrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsearch_db_migration_duration_seconds",
			Help:    "Duration of migration runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// MetricsCollector 数据库连接池指标收集器
type MetricsCollector struct {
	db              *sql.DB
	logger          *logrus.Logger
	collectInterval time.Duration
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector(db *sql.DB, logger *logrus.Logger) *MetricsCollector {
	return &MetricsCollector{
		db:              db,
		logger:          logger,
		collectInterval: 15 * time.Second,
	}
}

// Start 后台收集直到ctx结束
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting database metrics collection")

	go func() {
		ticker := time.NewTicker(mc.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.Collect()
			}
		}
	}()
}

// Collect 采集一次连接池统计
func (mc *MetricsCollector) Collect() {
	stats := mc.db.Stats()

	dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
	dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
	dbConnectionsGauge.WithLabelValues("wait_count").Set(float64(stats.WaitCount))

	mc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
		"wait":   stats.WaitCount,
	}).Debug("Database connection pool stats collected")
}

// RecordMigration 记录迁移操作
func (mc *MetricsCollector) RecordMigration(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	dbMigrationsCounter.WithLabelValues(operation, status).Inc()
	if err == nil {
		dbMigrationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

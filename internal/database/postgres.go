package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aihub/docsearch/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenPostgres 打开gorm连接并设置连接池
func OpenPostgres(cfg config.DatabaseConfig, logLevel logger.LogLevel) (*gorm.DB, *sql.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	configurePool(sqlDB, cfg)
	return db, sqlDB, nil
}

func configurePool(sqlDB *sql.DB, cfg config.DatabaseConfig) {
	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 100
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = time.Hour
	}
	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 30 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// EnableVectorColumn 尝试启用pgvector并添加向量列，返回是否可用
// 扩展未安装时只记录警告，检索退回应用层余弦计算
func EnableVectorColumn(db *gorm.DB, dimensions int, log *logrus.Logger) bool {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.WithError(err).Warn("pgvector extension unavailable, native vector search disabled")
		return false
	}

	stmt := fmt.Sprintf("ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS embedding_vector vector(%d)", dimensions)
	if err := db.Exec(stmt).Error; err != nil {
		log.WithError(err).Warn("Failed to add vector column, native vector search disabled")
		return false
	}

	log.WithField("dimensions", dimensions).Info("Native vector search enabled")
	return true
}

package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CheckFunc 单次连通性检查
type CheckFunc func(ctx context.Context) error

// HealthChecker 依赖健康检查器，定期执行检查并缓存结果
type HealthChecker struct {
	name          string
	check         CheckFunc
	logger        *logrus.Logger
	checkInterval time.Duration
	retryDelay    time.Duration
	maxRetries    int
	isHealthy     bool
	lastCheck     time.Time
	lastError     error
	responseTime  time.Duration
	mu            sync.RWMutex
	stopChan      chan struct{}
	running       bool
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Name         string    `json:"name"`
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(name string, check CheckFunc, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		name:          name,
		check:         check,
		logger:        logger,
		checkInterval: 30 * time.Second,
		retryDelay:    5 * time.Second,
		maxRetries:    3,
		stopChan:      make(chan struct{}),
	}
}

// NewDBHealthChecker 基于 *sql.DB 的Ping检查
func NewDBHealthChecker(db *sql.DB, logger *logrus.Logger) *HealthChecker {
	return NewHealthChecker("postgres", db.PingContext, logger)
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// SetRetryConfig 设置重试配置
func (hc *HealthChecker) SetRetryConfig(delay time.Duration, maxRetries int) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.retryDelay = delay
	hc.maxRetries = maxRetries
}

// Start 定期检查直到ctx结束或调用Stop，阻塞调用方
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	interval := hc.checkInterval
	hc.mu.Unlock()

	hc.logger.WithField("component", hc.name).Info("Starting health checker")

	go hc.checkAndUpdate(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.markStopped()
			return
		case <-hc.stopChan:
			hc.markStopped()
			return
		case <-ticker.C:
			go hc.checkAndUpdate(ctx)
		}
	}
}

func (hc *HealthChecker) markStopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
	hc.logger.WithField("component", hc.name).Info("Health checker stopped")
}

// Stop 停止健康检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	select {
	case <-hc.stopChan:
	default:
		close(hc.stopChan)
	}
}

// Check 执行单次健康检查
func (hc *HealthChecker) Check(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := hc.check(ctx)
	responseTime := time.Since(start)

	hc.mu.Lock()
	hc.lastCheck = time.Now()
	hc.responseTime = responseTime
	wasHealthy := hc.isHealthy
	if err != nil {
		hc.lastError = err
		hc.isHealthy = false
		hc.mu.Unlock()

		hc.logger.WithFields(logrus.Fields{
			"component":     hc.name,
			"error":         err.Error(),
			"response_time": responseTime,
		}).Warn("Health check failed")
		return err
	}
	hc.lastError = nil
	hc.isHealthy = true
	hc.mu.Unlock()

	if !wasHealthy {
		hc.logger.WithFields(logrus.Fields{
			"component":     hc.name,
			"response_time": responseTime,
		}).Info("Connection healthy")
	}
	return nil
}

func (hc *HealthChecker) checkAndUpdate(ctx context.Context) {
	if err := hc.Check(ctx); err != nil {
		hc.retryWithBackoff(ctx)
	}
}

// retryWithBackoff 线性退避重试
func (hc *HealthChecker) retryWithBackoff(ctx context.Context) {
	hc.mu.RLock()
	delay, maxRetries := hc.retryDelay, hc.maxRetries
	hc.mu.RUnlock()

	for i := 0; i < maxRetries; i++ {
		select {
		case <-time.After(delay * time.Duration(i+1)):
			if err := hc.Check(ctx); err == nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}

	hc.logger.WithField("component", hc.name).Error("Connection failed after all retries")
}

// IsHealthy 获取当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// GetHealthResult 获取健康检查结果
func (hc *HealthChecker) GetHealthResult() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Name:      hc.name,
		Healthy:   hc.isHealthy,
		LastCheck: hc.lastCheck,
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	if !hc.lastCheck.IsZero() {
		result.ResponseTime = hc.responseTime.String()
	}
	return result
}

// WaitForHealthy 等待依赖变为健康状态
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}

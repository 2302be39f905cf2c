package middleware

import (
	"context"
	"sort"
	"sync"
	"time"
)

// 健康状态取值
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	Details   interface{}   `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Probe 依赖探测，返回nil表示健康
type Probe func(ctx context.Context) error

// DetailsFunc 附加在健康状态中的详情，例如后台检查器的最近结果
type DetailsFunc func() interface{}

type component struct {
	probe    Probe
	required bool
	details  DetailsFunc
}

// MiddlewareManager 汇总外部依赖的健康状态
type MiddlewareManager struct {
	mu         sync.RWMutex
	components map[string]component
	disabled   map[string]string
}

// NewMiddlewareManager 创建中间件管理器
func NewMiddlewareManager() *MiddlewareManager {
	return &MiddlewareManager{
		components: make(map[string]component),
		disabled:   make(map[string]string),
	}
}

// Register 注册依赖；required 依赖不健康时整体状态为unhealthy，否则为degraded
func (m *MiddlewareManager) Register(name string, probe Probe, required bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = component{probe: probe, required: required}
	delete(m.disabled, name)
}

// RegisterDetails 为已注册依赖附加详情，未注册时忽略
func (m *MiddlewareManager) RegisterDetails(name string, details DetailsFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.components[name]
	if !ok {
		return
	}
	c.details = details
	m.components[name] = c
}

// Disable 记录未启用的依赖
func (m *MiddlewareManager) Disable(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[name] = reason
}

// Names 已注册依赖名，按字母序
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth 并发探测所有依赖，返回各依赖状态与整体状态
func (m *MiddlewareManager) CheckHealth(ctx context.Context) (map[string]HealthStatus, string) {
	m.mu.RLock()
	components := make(map[string]component, len(m.components))
	for name, c := range m.components {
		components[name] = c
	}
	disabled := make(map[string]string, len(m.disabled))
	for name, reason := range m.disabled {
		disabled[name] = reason
	}
	m.mu.RUnlock()

	health := make(map[string]HealthStatus, len(components)+len(disabled))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, c := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := runProbe(ctx, c.probe)
			if c.details != nil {
				status.Details = c.details()
			}
			mu.Lock()
			health[name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for name, status := range health {
		if status.Status == StatusHealthy {
			continue
		}
		if components[name].required {
			overall = StatusUnhealthy
		} else if overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	for name, reason := range disabled {
		health[name] = HealthStatus{
			Status:    StatusDegraded,
			Message:   reason,
			Timestamp: time.Now(),
		}
	}
	return health, overall
}

func runProbe(ctx context.Context, probe Probe) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	status := HealthStatus{
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

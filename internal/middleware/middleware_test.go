package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(ctx context.Context) error { return nil }

func failing(ctx context.Context) error { return errors.New("connection refused") }

func TestMiddlewareManager_AllHealthy(t *testing.T) {
	m := NewMiddlewareManager()
	m.Register("postgres", healthy, true)
	m.Register("redis", healthy, false)

	health, overall := m.CheckHealth(context.Background())
	assert.Equal(t, StatusHealthy, overall)
	assert.Equal(t, StatusHealthy, health["postgres"].Status)
	assert.Equal(t, []string{"postgres", "redis"}, m.Names())
}

func TestMiddlewareManager_OptionalFailureDegrades(t *testing.T) {
	m := NewMiddlewareManager()
	m.Register("postgres", healthy, true)
	m.Register("redis", failing, false)
	m.Disable("kafka", "Kafka not configured")

	health, overall := m.CheckHealth(context.Background())
	assert.Equal(t, StatusDegraded, overall)
	assert.Equal(t, StatusUnhealthy, health["redis"].Status)
	assert.Equal(t, "connection refused", health["redis"].Message)
	assert.Equal(t, StatusDegraded, health["kafka"].Status)
}

func TestMiddlewareManager_RegisterDetails(t *testing.T) {
	m := NewMiddlewareManager()
	m.Register("postgres", healthy, true)
	m.RegisterDetails("postgres", func() interface{} {
		return map[string]bool{"healthy": true}
	})
	m.RegisterDetails("missing", func() interface{} { return "ignored" })

	health, _ := m.CheckHealth(context.Background())
	assert.Equal(t, map[string]bool{"healthy": true}, health["postgres"].Details)
	_, ok := health["missing"]
	assert.False(t, ok)
}

func TestMiddlewareManager_RequiredFailure(t *testing.T) {
	m := NewMiddlewareManager()
	m.Register("postgres", failing, true)
	m.Register("redis", failing, false)

	_, overall := m.CheckHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, overall)
}

func TestMiddlewareManager_ProbeTimeout(t *testing.T) {
	m := NewMiddlewareManager()
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	health, _ := m.CheckHealth(ctx)
	assert.Equal(t, StatusUnhealthy, health["slow"].Status)
}

func TestSearchKey_NormalisesQuery(t *testing.T) {
	a := SearchKey("  Vector   SEARCH ", 5)
	b := SearchKey("vector search", 5)
	c := SearchKey("vector search", 10)

	assert.Equal(t, a, b)
	assert.NotEqual(t, b, c)
	assert.True(t, strings.HasPrefix(a, searchCachePrefix))
}

func TestRedisService_DisabledIsNoop(t *testing.T) {
	s := NewRedisService(nil)
	ctx := context.Background()

	assert.False(t, s.Enabled())
	var dest map[string]interface{}
	assert.ErrorIs(t, s.GetCache(ctx, "k", &dest), ErrCacheMiss)
	require.NoError(t, s.SetCache(ctx, "k", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, s.InvalidateSearches(ctx))
	assert.Error(t, s.HealthCheck(ctx))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "documents/doc-1/report.pdf", ObjectKey("doc-1", "../../report.pdf"))
}

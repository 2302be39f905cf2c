package middleware

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache not found")

const searchCachePrefix = "docsearch:search:"

// RedisService 检索结果缓存，client 为nil时所有操作为空操作
type RedisService struct {
	client *redis.Client
}

// NewRedisService 创建Redis服务实例
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// Enabled 是否配置了Redis
func (s *RedisService) Enabled() bool {
	return s != nil && s.client != nil
}

// SearchKey 检索缓存key，查询按小写并折叠空白后哈希
func SearchKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%s", limit, normalized)))
	return searchCachePrefix + hex.EncodeToString(sum[:])
}

// GetCache 读取JSON缓存到 dest，未命中返回 ErrCacheMiss
func (s *RedisService) GetCache(ctx context.Context, key string, dest interface{}) error {
	if !s.Enabled() {
		return ErrCacheMiss
	}

	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// SetCache 写入JSON缓存
func (s *RedisService) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() || ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// DeleteCachePattern 按模式删除缓存
func (s *RedisService) DeleteCachePattern(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return s.client.Del(ctx, keys...).Err()
	}
	return nil
}

// InvalidateSearches 新文档入库后清除检索缓存
func (s *RedisService) InvalidateSearches(ctx context.Context) error {
	return s.DeleteCachePattern(ctx, searchCachePrefix+"*")
}

// HealthCheck Ping
func (s *RedisService) HealthCheck(ctx context.Context) error {
	if !s.Enabled() {
		return fmt.Errorf("redis client not initialized")
	}
	return s.client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func (s *RedisService) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}

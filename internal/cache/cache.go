package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/newsdesk/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 缓存键，实际写入时会加上配置的前缀。
const (
	KeyDashboard    = "dashboard:summary"
	KeyBreakingNews = "breaking_news:headlines"
)

// Store 是粗粒度的 TTL 缓存，值以 JSON 编码保存。缓存未命中返回 (false, nil)。
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// New 根据配置选择实现：配置了 redis 地址时使用 redis，否则使用进程内缓存。
func New(ctx context.Context, redisCfg config.RedisConfig, cacheCfg config.CacheConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if strings.TrimSpace(redisCfg.Addr) == "" {
		log.Info("redis not configured, using in-memory cache")
		return NewMemoryStore(cacheCfg.KeyPrefix), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 redis 失败: %w", err)
	}

	log.Info("redis cache connected", zap.String("addr", redisCfg.Addr), zap.Int("db", redisCfg.DB))
	return NewRedisStore(client, cacheCfg.KeyPrefix, log), nil
}

// RedisStore 基于 go-redis 的实现。
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client *redis.Client, prefix string, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, log: log.Named("cache")}
}

func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		s.log.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cache value %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		s.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, s.prefix+key)
	}
	return s.client.Del(ctx, prefixed...).Err()
}

// Close 关闭底层连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore 是线程安全的进程内 TTL 缓存，过期条目在写入时顺带清理。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	prefix  string
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process cache.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		prefix:  prefix,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[s.prefix+key]
	s.mu.RUnlock()

	if !ok || s.expired(entry) {
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dest); err != nil {
		return false, fmt.Errorf("decode cache value %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}

	entry := memoryEntry{value: raw}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.entries[s.prefix+key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, s.prefix+key)
	}
	return nil
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)
}

func (s *MemoryStore) cleanupLocked() {
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
		}
	}
}

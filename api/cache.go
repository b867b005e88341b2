package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores raw backend responses keyed by request identity.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type memoryEntry struct {
	data      []byte
	fetchedAt time.Time
	ttl       time.Duration
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set stores data for ttl and drops every entry that has expired.
func (m *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{data: data, fetchedAt: now, ttl: ttl}
	return nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.Sub(e.fetchedAt) >= e.ttl
}

// RedisCache is a Cache shared between server instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the Redis server at redisURL
// (e.g. "redis://localhost:6379/0") and checks it with PING.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client, prefix: "medicmap:"}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[api] redis get %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (r *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"luminastay/models"
	"luminastay/utils"
)

// ReportCache stores computed market reports by key. Reports are shared
// between callers and must be treated as read-only.
type ReportCache interface {
	Get(ctx context.Context, key string) (*models.MarketReport, bool)
	Set(ctx context.Context, key string, r *models.MarketReport)
}

type cacheEntry struct {
	report *models.MarketReport
	exp    time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu  sync.RWMutex
	m   map[string]cacheEntry
	ttl time.Duration
}

// NewMemoryCache creates a MemoryCache. A ttl of 0 keeps entries until a
// newer key replaces them.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{m: make(map[string]cacheEntry), ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*models.MarketReport, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.report, true
}

// Set stores r under key and drops every other entry, since a new key
// means the dataset changed.
func (c *MemoryCache) Set(_ context.Context, key string, r *models.MarketReport) {
	e := cacheEntry{report: r}
	if c.ttl > 0 {
		e.exp = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.m = map[string]cacheEntry{key: e}
	c.mu.Unlock()
}

// RedisCache shares reports between service instances through Redis.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *utils.Logger
}

// NewRedisCache creates a RedisCache on the server at addr.
func NewRedisCache(addr string, ttl time.Duration, logger *utils.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "luminastay:", logger: logger}
}

// Get treats any Redis failure as a miss so the report is recomputed.
func (c *RedisCache) Get(ctx context.Context, key string) (*models.MarketReport, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("[analytics] redis get %s: %v", key, err)
		return nil, false
	}
	var r models.MarketReport
	if err := json.Unmarshal(raw, &r); err != nil {
		c.logger.Warn("[analytics] redis entry %s is corrupt: %v", key, err)
		return nil, false
	}
	return &r, true
}

func (c *RedisCache) Set(ctx context.Context, key string, r *models.MarketReport) {
	raw, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("[analytics] encode report: %v", err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("[analytics] redis set %s: %v", key, err)
	}
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"intelgraph-lab/internal/config"
	"intelgraph-lab/pkg/logger"
)

// RedisCache wraps the Redis client with typed operations
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *logger.Logger
}

// NewRedis creates a new Redis client
func NewRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	log = log.WithComponent("redis")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("connected to Redis successfully")

	return &RedisCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    log,
	}, nil
}

// Client returns the underlying Redis client
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	c.logger.Info().Msg("closing Redis connection")
	return c.client.Close()
}

// key prepends the namespace prefix to a key
func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, c.key(key)).Result()
}

// GetJSON retrieves and unmarshals a JSON value from cache
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Set stores a value in cache with optional TTL
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// SetJSON marshals and stores a value in cache
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixedKeys := make([]string, len(keys))
	for i, k := range keys {
		prefixedKeys[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixedKeys...).Err()
}

// Exists checks if a key exists
func (c *RedisCache) Exists(ctx context.Context, keys ...string) (int64, error) {
	prefixedKeys := make([]string, len(keys))
	for i, k := range keys {
		prefixedKeys[i] = c.key(k)
	}
	return c.client.Exists(ctx, prefixedKeys...).Result()
}

// Incr increments an integer value
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.key(key)).Result()
}

// SetNX sets a value only if the key does not exist (for distributed locks)
func (c *RedisCache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.key(key), value, ttl).Result()
}

// LPush pushes values onto the head of a list
func (c *RedisCache) LPush(ctx context.Context, key string, values ...any) error {
	return c.client.LPush(ctx, c.key(key), values...).Err()
}

// BRPop pops a value from the tail of a list, blocking up to timeout
func (c *RedisCache) BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error) {
	prefixedKeys := make([]string, len(keys))
	for i, k := range keys {
		prefixedKeys[i] = c.key(k)
	}
	return c.client.BRPop(ctx, timeout, prefixedKeys...).Result()
}

// LLen returns the length of a list
func (c *RedisCache) LLen(ctx context.Context, key string) (int64, error) {
	return c.client.LLen(ctx, c.key(key)).Result()
}

// Pipeline returns a Redis pipeline for batch operations
func (c *RedisCache) Pipeline() redis.Pipeliner {
	return c.client.Pipeline()
}

// Cache key constants
const (
	// Report cache keys
	KeyReportPrefix       = "cache:report:"
	KeyLatestReportPrefix = "cache:report:latest:"

	// Rate limiting keys
	KeyRateLimitPrefix = "rate_limit:"

	// Analysis queue keys
	KeyAnalysisQueue = "queue:analysis"
	KeyAnalysisLock  = "queue:lock:"

	// Stats keys
	KeyEngineStats = "cache:engine:stats"
)

// CacheReport caches a generated report under its ID and as the
// investigation's latest.
func (c *RedisCache) CacheReport(ctx context.Context, report any, reportID, investigationID string, ttl time.Duration) error {
	if err := c.SetJSON(ctx, KeyReportPrefix+reportID, report, ttl); err != nil {
		return err
	}
	return c.SetJSON(ctx, KeyLatestReportPrefix+investigationID, report, ttl)
}

// GetCachedReport retrieves a cached report by ID
func (c *RedisCache) GetCachedReport(ctx context.Context, reportID string, dest any) error {
	return c.GetJSON(ctx, KeyReportPrefix+reportID, dest)
}

// GetCachedLatestReport retrieves an investigation's most recent cached report
func (c *RedisCache) GetCachedLatestReport(ctx context.Context, investigationID string, dest any) error {
	return c.GetJSON(ctx, KeyLatestReportPrefix+investigationID, dest)
}

// InvalidateReports drops the cached reports for an investigation
func (c *RedisCache) InvalidateReports(ctx context.Context, reportID, investigationID string) error {
	return c.Delete(ctx, KeyReportPrefix+reportID, KeyLatestReportPrefix+investigationID)
}

// AcquireLock attempts to acquire a distributed lock
func (c *RedisCache) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, KeyAnalysisLock+lockKey, "locked", ttl)
}

// ReleaseLock releases a distributed lock
func (c *RedisCache) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.Delete(ctx, KeyAnalysisLock+lockKey)
}

// CheckRateLimit checks and increments the rate limit counter.
// Returns (allowed, remaining, resetTime, error).
func (c *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	now := time.Now()
	windowKey := fmt.Sprintf("%s%s:%d", KeyRateLimitPrefix, key, now.Unix()/int64(window.Seconds()))

	pipe := c.Pipeline()
	incr := pipe.Incr(ctx, c.key(windowKey))
	pipe.Expire(ctx, c.key(windowKey), window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := now.Add(window)

	return count <= limit, remaining, resetTime, nil
}

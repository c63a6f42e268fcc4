// Package cache remembers definitive validation outcomes per player and day
// so repeated runs avoid external fixture and lineup calls.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const (
	defaultTTL    = 12 * time.Hour
	defaultPrefix = "sickbay:validation"
	dayLayout     = "2006-01-02"
)

// ValidationCache stores validation outcomes keyed by player and calendar day.
type ValidationCache interface {
	Get(ctx context.Context, playerID int64, day time.Time) (model.ValidationResult, bool)
	Set(ctx context.Context, playerID int64, day time.Time, res model.ValidationResult)
}

// Commander is the subset of redis commands the cache needs.
type Commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache implements ValidationCache on redis. Redis failures are logged and read as misses.
type RedisCache struct {
	client Commander
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client Commander, opts ...Option) *RedisCache {
	c := &RedisCache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		logger: logger.Get().Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial parses a redis URL, connects and pings.
func Dial(ctx context.Context, redisURL string, opts ...Option) (*RedisCache, *redis.Client, error) {
	o, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisCache(client, opts...), client, nil
}

// Get returns a cached outcome.
func (c *RedisCache) Get(ctx context.Context, playerID int64, day time.Time) (model.ValidationResult, bool) {
	raw, err := c.client.Get(ctx, c.key(playerID, day)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup("miss")
		return model.ValidationResult{}, false
	}
	if err != nil {
		metrics.RecordCacheLookup("error")
		c.logger.Warn(ctx, "cache read failed", logger.Int64("player_id", playerID), logger.Error(err))
		return model.ValidationResult{}, false
	}

	var res model.ValidationResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil || !res.Method.Definitive() {
		metrics.RecordCacheLookup("error")
		c.logger.Warn(ctx, "discarding unreadable cache entry", logger.Int64("player_id", playerID))
		return model.ValidationResult{}, false
	}
	metrics.RecordCacheLookup("hit")
	return res, true
}

// Set stores definitive outcomes only. Pass-through outcomes are never cached.
func (c *RedisCache) Set(ctx context.Context, playerID int64, day time.Time, res model.ValidationResult) {
	if !res.Method.Definitive() {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn(ctx, "cache encode failed", logger.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(playerID, day), body, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "cache write failed", logger.Int64("player_id", playerID), logger.Error(err))
	}
}

func (c *RedisCache) key(playerID int64, day time.Time) string {
	return c.prefix + ":" + strconv.FormatInt(playerID, 10) + ":" + day.UTC().Format(dayLayout)
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, int64, time.Time) (model.ValidationResult, bool) {
	return model.ValidationResult{}, false
}

func (Noop) Set(context.Context, int64, time.Time, model.ValidationResult) {}

package cache

import (
	"time"

	"github.com/okian/sickbay/pkg/logger"
)

// Option applies a configuration option to the RedisCache.
type Option func(*RedisCache)

// WithTTL sets how long an outcome stays cached.
func WithTTL(d time.Duration) Option {
	return func(c *RedisCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(p string) Option {
	return func(c *RedisCache) {
		if p != "" {
			c.prefix = p
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *RedisCache) {
		if l != nil {
			c.logger = l
		}
	}
}

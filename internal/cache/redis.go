package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/router"
)

const keyPrefix = "logrouter:index:"

// DefaultTTL keeps shared entries past a daily index's active window
const DefaultTTL = 48 * time.Hour

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return client, nil
}

// RedisIndices shares known index names between processes. Lookups
// hit local memory first; any Redis failure is treated as a miss.
type RedisIndices struct {
	client *redis.Client
	local  *router.MemoryIndices
	ttl    time.Duration
}

var _ router.KnownIndices = (*RedisIndices)(nil)

// NewRedisIndices layers Redis under an in-memory cache
func NewRedisIndices(client *redis.Client, local *router.MemoryIndices, ttl time.Duration) *RedisIndices {
	if local == nil {
		local = router.NewMemoryIndices()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisIndices{client: client, local: local, ttl: ttl}
}

// Key returns the Redis key for an index name
func Key(name string) string {
	return keyPrefix + name
}

// Known implements router.KnownIndices
func (c *RedisIndices) Known(ctx context.Context, name string) bool {
	if c.local.Known(ctx, name) {
		return true
	}

	n, err := c.client.Exists(ctx, Key(name)).Result()
	if err != nil {
		log.Debug().Err(err).Str("index", name).Msg("Redis lookup failed, treating as miss")
		return false
	}
	if n == 0 {
		return false
	}

	c.local.MarkKnown(ctx, name)
	return true
}

// MarkKnown implements router.KnownIndices
func (c *RedisIndices) MarkKnown(ctx context.Context, name string) {
	c.local.MarkKnown(ctx, name)
	if err := c.client.Set(ctx, Key(name), 1, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("index", name).Msg("Failed to share known index")
	}
}

// Prune drops stale names from local memory; Redis entries expire on their own
func (c *RedisIndices) Prune(before time.Time) int {
	return c.local.Prune(before)
}

// Close closes the Redis connection
func (c *RedisIndices) Close() error {
	return c.client.Close()
}

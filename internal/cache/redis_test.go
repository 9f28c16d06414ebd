package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/router"
)

// unreachable returns a client whose every command fails fast
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestKey(t *testing.T) {
	assert.Equal(t, "logrouter:index:logs-a-2024-01-15", Key("logs-a-2024-01-15"))
}

func TestRedisFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewRedisIndices(unreachable(t), nil, 0)

	assert.False(t, c.Known(ctx, "logs-a-2024-01-15"))

	// the local layer still records the name
	c.MarkKnown(ctx, "logs-a-2024-01-15")
	assert.True(t, c.Known(ctx, "logs-a-2024-01-15"))
}

func TestPruneDelegatesToMemory(t *testing.T) {
	ctx := context.Background()
	local := router.NewMemoryIndices()
	local.MarkKnown(ctx, "logs-a-2024-01-01")
	local.MarkKnown(ctx, "logs-a-2024-01-15")

	c := NewRedisIndices(unreachable(t), local, time.Hour)
	assert.Equal(t, 1, c.Prune(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, local.Len())
}

func TestNewRedisClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

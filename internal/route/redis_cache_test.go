package route

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("TSDB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TSDB_TEST_REDIS_ADDR not set")
	}

	cache, err := NewRedisCache(context.Background(), RedisConfig{
		Addr:   addr,
		Prefix: "tsdb:test:" + uuid.NewString() + ":",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "cpu")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cache.Set(ctx, &model.Route{Metric: "cpu", Endpoint: "h1:9000"}, time.Minute))
	rt, err := cache.Get(ctx, "cpu")
	require.NoError(t, err)
	assert.Equal(t, model.Route{Metric: "cpu", Endpoint: "h1:9000"}, *rt)

	require.NoError(t, cache.Delete(ctx, "cpu"))
	_, err = cache.Get(ctx, "cpu")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, cache.Ping(ctx))
}

func TestRedisCache_DefaultPrefix(t *testing.T) {
	cache := newRedisCache(nil, "", nil)
	assert.Equal(t, "tsdb:route:cpu", cache.key("cpu"))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}

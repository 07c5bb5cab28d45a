package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total int `json:"total"`
}

func testCacheService(t *testing.T, c CacheService) {
	ctx := context.Background()

	t.Run("Miss on empty cache", func(t *testing.T) {
		var p payload
		assert.ErrorIs(t, c.Get(ctx, "stats:coupons", &p), ErrCacheMiss)
	})

	t.Run("Set then Get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "stats:coupons", payload{Total: 7}, time.Minute))
		var p payload
		require.NoError(t, c.Get(ctx, "stats:coupons", &p))
		assert.Equal(t, 7, p.Total)
	})

	t.Run("Keys are independent", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "other", payload{Total: 2}, time.Minute))
		require.NoError(t, c.Delete(ctx, "stats:coupons"))

		var p payload
		assert.ErrorIs(t, c.Get(ctx, "stats:coupons", &p), ErrCacheMiss)
		assert.NoError(t, c.Get(ctx, "other", &p))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "other"))
		var p payload
		assert.ErrorIs(t, c.Get(ctx, "other", &p), ErrCacheMiss)
	})
}

func TestMemoryCache(t *testing.T) {
	testCacheService(t, NewMemoryCache())

	t.Run("Expired entries miss", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(context.Background(), "k", payload{}, -time.Second))
		var p payload
		assert.ErrorIs(t, c.Get(context.Background(), "k", &p), ErrCacheMiss)
	})
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	testCacheService(t, NewRedisCache(client, "test:"))

	t.Run("Keys carry a single cache namespace", func(t *testing.T) {
		c := NewRedisCache(client, "app:")
		require.NoError(t, c.Set(context.Background(), "stats:coupons", payload{Total: 3}, time.Minute))
		assert.True(t, mr.Exists("app:cache:stats:coupons"))
	})
}

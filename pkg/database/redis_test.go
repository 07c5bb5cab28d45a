package database

import (
	"context"
	"testing"

	"coupon_subscription/internal/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenRedis(t *testing.T) {
	t.Run("Connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb, err := OpenRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
		require.NoError(t, err)
		defer rdb.Close()

		assert.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	})

	t.Run("Fails when the server is down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := OpenRedis(context.Background(), config.RedisConfig{Addr: addr}, zap.NewNop())
		assert.Error(t, err)
	})
}

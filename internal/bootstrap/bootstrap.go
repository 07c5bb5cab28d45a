package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/cache"
	"coupon_subscription/pkg/database"

	"go.uber.org/zap"
)

// Resources 按 store.driver 打开的存储与缓存
type Resources struct {
	Store store.Store
	Cache cache.CacheService

	closers []func() error
}

// Open 打开存储后端：memory 用进程内存；redis 同时作为缓存；postgres 搭配内存缓存
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Resources, error) {
	res := &Resources{}
	switch cfg.Store.Driver {
	case "", "memory":
		res.Store = store.NewMemoryStore()
		res.Cache = cache.NewMemoryCache()

	case "redis":
		client, err := database.OpenRedis(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		res.Store = store.NewRedisStore(client, cfg.Store.KeyPrefix)
		res.Cache = cache.NewRedisCache(client, cfg.Store.KeyPrefix)
		res.closers = append(res.closers, client.Close)

	case "postgres":
		db, err := database.OpenPostgres(cfg.Database, cfg.App.Debug, log)
		if err != nil {
			return nil, err
		}
		res.Store = store.NewPostgresStore(db)
		res.Cache = cache.NewMemoryCache()

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	res.closers = append([]func() error{res.Store.Close}, res.closers...)

	log.Info("store opened", zap.String("driver", cfg.Store.Driver))
	return res, nil
}

// Close 依次关闭存储与连接
func (r *Resources) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

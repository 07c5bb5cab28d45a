// sweeper 一次性清理到期订阅，由外部调度器（cron）定期调用
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon_subscription/internal/bootstrap"
	"coupon_subscription/internal/domain/subscription"
	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/internal/pkg/registry"
	"coupon_subscription/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "maximum run time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log.Named("sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if cfg.Store.Driver == "memory" {
		log.Warn("memory store has nothing to sweep across processes")
	}
	expired, err := run(ctx, cfg, log)
	if err != nil {
		log.Error("cleanup failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	log.Info("cleanup done", zap.Int("expired", expired))
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) (int, error) {
	res, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer res.Close()

	svc := subscription.NewService(&registry.ModuleContext{Store: res.Store, Config: cfg, Logger: log})
	return svc.Cleanup(ctx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon_subscription/internal/bootstrap"
	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/internal/pkg/registry"
	"coupon_subscription/pkg/logger"
	"coupon_subscription/pkg/metrics"

	// 领域模块在 init 中自注册
	_ "coupon_subscription/internal/domain/common"
	_ "coupon_subscription/internal/domain/coupon"
	_ "coupon_subscription/internal/domain/redemption"
	_ "coupon_subscription/internal/domain/subscription"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer func() {
		if err := res.Close(); err != nil {
			log.Error("failed to close store", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewMetricsCollector(reg)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(log),
		middleware.CORSMiddleware(cfg.Server.AllowOrigins),
		middleware.MetricsMiddleware(collector),
	)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	if err := registry.InitModules(&registry.ModuleContext{
		Store:   res.Store,
		Router:  r,
		Config:  cfg,
		Logger:  log,
		Metrics: collector,
		Cache:   res.Cache,
	}); err != nil {
		log.Fatal("failed to init modules", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
}

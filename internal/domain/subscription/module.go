package subscription

import (
	"coupon_subscription/internal/domain/subscription/handler"
	"coupon_subscription/internal/domain/subscription/service"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// ServiceName 提供给其他模块的服务名
const ServiceName = "subscription.service"

// SubscriptionModule 订阅模块
type SubscriptionModule struct{}

func init() {
	registry.Register(&SubscriptionModule{})
}

func (m *SubscriptionModule) Name() string {
	return "subscription"
}

func (m *SubscriptionModule) Priority() int {
	return 20
}

func (m *SubscriptionModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	sService := NewService(ctx)
	sHandler := handler.NewSubscriptionHandler(sService, ctx.Logger)
	ctx.Provide(ServiceName, sService)

	// 2. 路由注册
	setupRoutes(ctx.Router, sHandler, ctx.Config.JWT.Secret)

	return nil
}

// NewService 按模块上下文构建服务，cmd/sweeper 也用它
func NewService(ctx *registry.ModuleContext) service.SubscriptionService {
	opts := []service.Option{
		service.WithMetrics(ctx.Metrics),
		service.WithRetries(ctx.Config.Store.Retries),
		service.WithProPrice(ctx.Config.Pricing.Pro.Monthly),
	}
	if ctx.Clock != nil {
		opts = append(opts, service.WithClock(ctx.Clock))
	}
	return service.NewSubscriptionService(ctx.Store, ctx.Logger, opts...)
}

func setupRoutes(r *gin.Engine, h *handler.SubscriptionHandler, secret string) {
	authorized := r.Group("/subscriptions/me")
	authorized.Use(middleware.AuthMiddleware(secret))
	{
		authorized.GET("", h.GetMySubscription)
		authorized.GET("/history", h.MyHistory)
		authorized.GET("/access/:feature", h.CheckAccess)
		authorized.POST("/cancel", h.CancelMine)
	}

	admin := r.Group("/admin/subscriptions")
	admin.Use(middleware.AuthMiddleware(secret), middleware.AdminMiddleware())
	{
		admin.GET("/stats", h.Stats)
		admin.POST("/cleanup", h.Cleanup)
		admin.POST("/:id/expire", h.Expire)
		admin.POST("/:id/cancel", h.Cancel)
	}
}

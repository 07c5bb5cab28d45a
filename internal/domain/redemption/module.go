package redemption

import (
	"fmt"

	"coupon_subscription/internal/domain/coupon"
	couponService "coupon_subscription/internal/domain/coupon/service"
	"coupon_subscription/internal/domain/redemption/handler"
	"coupon_subscription/internal/domain/redemption/service"
	"coupon_subscription/internal/domain/subscription"
	subService "coupon_subscription/internal/domain/subscription/service"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RedemptionModule 兑换模块，依赖 coupon 与 subscription 模块提供的服务
type RedemptionModule struct{}

func init() {
	registry.Register(&RedemptionModule{})
}

func (m *RedemptionModule) Name() string {
	return "redemption"
}

func (m *RedemptionModule) Priority() int {
	return 30
}

func (m *RedemptionModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	coupons, err := registry.Resolve[couponService.CouponService](ctx, coupon.ServiceName)
	if err != nil {
		return fmt.Errorf("redemption: %w", err)
	}
	subs, err := registry.Resolve[subService.SubscriptionService](ctx, subscription.ServiceName)
	if err != nil {
		return fmt.Errorf("redemption: %w", err)
	}

	rService := service.NewRedemptionService(coupons, subs,
		service.NewPriceTable(ctx.Config.Pricing), ctx.Logger,
		service.WithMetrics(ctx.Metrics),
	)
	rHandler := handler.NewRedemptionHandler(rService, ctx.Logger)

	// 2. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(ctx.Config.RateLimit.RPS), ctx.Config.RateLimit.Burst)
	setupRoutes(ctx.Router, rHandler, ctx.Config.JWT.Secret, limiter)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.RedemptionHandler, secret string, limiter *middleware.IPRateLimiter) {
	authorized := r.Group("/redemptions")
	authorized.Use(middleware.AuthMiddleware(secret))
	{
		authorized.GET("", h.History)
		authorized.POST("", middleware.RateLimitMiddleware(limiter), h.Redeem)
		authorized.POST("/:id/resume", middleware.RateLimitMiddleware(limiter), h.Resume)
	}
}

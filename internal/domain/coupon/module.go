package coupon

import (
	"coupon_subscription/internal/domain/coupon/handler"
	"coupon_subscription/internal/domain/coupon/service"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// ServiceName 提供给其他模块的服务名
const ServiceName = "coupon.service"

// CouponModule 优惠券模块
type CouponModule struct{}

func init() {
	registry.Register(&CouponModule{})
}

func (m *CouponModule) Name() string {
	return "coupon"
}

func (m *CouponModule) Priority() int {
	return 10
}

func (m *CouponModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	opts := []service.Option{
		service.WithCache(ctx.Cache),
		service.WithMetrics(ctx.Metrics),
		service.WithRetries(ctx.Config.Store.Retries),
	}
	if ctx.Clock != nil {
		opts = append(opts, service.WithClock(ctx.Clock))
	}
	cService := service.NewCouponService(ctx.Store, ctx.Logger, opts...)
	cHandler := handler.NewCouponHandler(cService, ctx.Logger)
	ctx.Provide(ServiceName, cService)

	// 2. 路由注册
	setupRoutes(ctx.Router, cHandler, ctx.Config.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CouponHandler, secret string) {
	// 需要认证的路由组
	authorized := r.Group("/coupons")
	authorized.Use(middleware.AuthMiddleware(secret))
	{
		authorized.POST("/validate", h.ValidateCoupon)
	}

	// 需要管理员权限的路由组
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(secret), middleware.AdminMiddleware())
	{
		admin.POST("/coupons", h.CreateCoupon)
		admin.GET("/coupons", h.ListCoupons)
		admin.GET("/coupons/stats", h.Stats)
		admin.POST("/coupons/reconcile", h.Reconcile)
		admin.GET("/coupons/code/:code", h.GetCouponByCode)
		admin.GET("/coupons/:id", h.GetCoupon)
		admin.PATCH("/coupons/:id", h.UpdateCoupon)
		admin.DELETE("/coupons/:id", h.DeleteCoupon)
		admin.POST("/coupons/:id/toggle", h.ToggleCoupon)
		admin.GET("/coupons/:id/usages", h.CouponUsages)
		admin.GET("/coupon-usages", h.UsageHistory)
	}
}

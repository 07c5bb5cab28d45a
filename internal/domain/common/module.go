package common

import (
	"context"
	"net/http"
	"time"

	"coupon_subscription/internal/pkg/registry"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	// 注册通用路由
	setupRoutes(ctx.Router, ctx.Store, ctx.Config.Store.Driver, ctx.Logger)
	return nil
}

func setupRoutes(r *gin.Engine, st store.Store, driver string, log *zap.Logger) {
	r.GET("/health", healthHandler(st, driver, log))
}

// healthHandler 读一次 coupons 集合，确认存储可用
func healthHandler(st store.Store, driver string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		err := st.View(ctx, func(tx store.Tx) error {
			var raw []map[string]interface{}
			return tx.Get(store.CollectionCoupons, &raw)
		})
		if err != nil {
			log.Warn("health check failed", zap.String("driver", driver), zap.Error(err))
			response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "store unavailable")
			return
		}
		response.Success(c, gin.H{"status": "ok", "store": driver})
	}
}

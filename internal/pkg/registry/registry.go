package registry

import (
	"fmt"
	"sort"
	"time"

	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/cache"
	"coupon_subscription/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	Store   store.Store
	Router  *gin.Engine
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.MetricsCollector
	Cache   cache.CacheService
	Clock   func() time.Time

	services map[string]interface{}
}

// Provide 暴露服务给优先级更低（后初始化）的模块
func (c *ModuleContext) Provide(name string, svc interface{}) {
	if c.services == nil {
		c.services = make(map[string]interface{})
	}
	c.services[name] = svc
}

// Resolve 按名称取出其他模块提供的服务
func Resolve[T any](c *ModuleContext, name string) (T, error) {
	var zero T
	svc, ok := c.services[name]
	if !ok {
		return zero, fmt.Errorf("service %q not provided, check module priorities", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has type %T", name, svc)
	}
	return typed, nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：coupon 与 subscription 模块需先于 redemption 模块初始化
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})

	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
		if ctx.Logger != nil {
			ctx.Logger.Debug("module initialized", zap.String("module", module.Name()))
		}
	}
	return nil
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 优惠券指标
	couponValidations *prometheus.CounterVec
	redemptions       *prometheus.CounterVec
	usageRecorded     prometheus.Counter

	// 订阅指标
	subscriptionTransitions *prometheus.CounterVec

	// 存储指标
	storeConflicts *prometheus.CounterVec

	// 缓存指标
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
}

// NewMetricsCollector 在给定的 Registerer 上注册全部指标
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		couponValidations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_validations_total",
				Help: "Coupon validations by outcome",
			},
			[]string{"outcome"},
		),

		redemptions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_redemptions_total",
				Help: "Coupon redemptions by coupon type and result",
			},
			[]string{"type", "result"},
		),

		usageRecorded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "coupon_usage_recorded_total",
				Help: "Coupon usage ledger rows written",
			},
		),

		subscriptionTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_transitions_total",
				Help: "Subscription status transitions",
			},
			[]string{"plan", "to"},
		),

		storeConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_conflicts_total",
				Help: "Store transactions aborted by a concurrent writer",
			},
			[]string{"operation"},
		),

		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_prefix"},
		),

		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_prefix"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordValidation outcome: valid / invalid / error
func (m *MetricsCollector) RecordValidation(outcome string) {
	if m == nil {
		return
	}
	m.couponValidations.WithLabelValues(outcome).Inc()
}

// RecordRedemption 记录一次兑换
func (m *MetricsCollector) RecordRedemption(couponType, result string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(couponType, result).Inc()
}

// RecordUsage 记录写入的使用记录
func (m *MetricsCollector) RecordUsage() {
	if m == nil {
		return
	}
	m.usageRecorded.Inc()
}

// RecordTransition 记录订阅状态迁移
func (m *MetricsCollector) RecordTransition(plan, to string) {
	if m == nil {
		return
	}
	m.subscriptionTransitions.WithLabelValues(plan, to).Inc()
}

// RecordConflict 记录存储冲突
func (m *MetricsCollector) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.storeConflicts.WithLabelValues(operation).Inc()
}

// RecordCacheLookup 记录缓存命中情况
func (m *MetricsCollector) RecordCacheLookup(keyPrefix string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHitsTotal.WithLabelValues(keyPrefix).Inc()
	} else {
		m.cacheMissesTotal.WithLabelValues(keyPrefix).Inc()
	}
}

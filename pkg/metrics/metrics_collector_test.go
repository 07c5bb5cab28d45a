package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsCollector(reg)

	m.RecordHTTPRequest("POST", "/redemptions", 200, 15*time.Millisecond)
	m.RecordValidation("valid")
	m.RecordValidation("invalid")
	m.RecordValidation("invalid")
	m.RecordRedemption("percentage", "success")
	m.RecordUsage()
	m.RecordTransition("pro", "active")
	m.RecordConflict("redeem")
	m.RecordCacheLookup("coupon_stats", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.couponValidations.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.usageRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/redemptions", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeConflicts.WithLabelValues("redeem")))

	t.Run("Separate registries do not collide", func(t *testing.T) {
		assert.NotPanics(t, func() { NewMetricsCollector(prometheus.NewRegistry()) })
	})

	t.Run("Nil collector is a no-op", func(t *testing.T) {
		var none *MetricsCollector
		assert.NotPanics(t, func() {
			none.RecordUsage()
			none.RecordValidation("valid")
		})
	})
}

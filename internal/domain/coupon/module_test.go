package coupon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/internal/pkg/registry"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/cache"
	"coupon_subscription/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	admin  string
	user   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := &registry.ModuleContext{
		Store:  store.NewMemoryStore(),
		Router: gin.New(),
		Config: &config.Config{JWT: config.JWTConfig{Secret: testSecret}},
		Logger: zap.NewNop(),
		Cache:  cache.NewMemoryCache(),
		Clock:  func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	require.NoError(t, (&CouponModule{}).Init(ctx))

	admin, err := utils.GenerateToken(testSecret, "admin-1", "admin@example.com", "admin", time.Hour)
	require.NoError(t, err)
	user, err := utils.GenerateToken(testSecret, "user-1", "user@example.com", "user", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, router: ctx.Router, admin: admin, user: user}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestCouponRoutes(t *testing.T) {
	s := newTestServer(t)

	newCoupon := map[string]interface{}{
		"code":        "summer25",
		"type":        "percentage",
		"value":       25,
		"maxDiscount": 100,
		"usageLimit":  10,
		"validFrom":   "2026-01-01T00:00:00Z",
		"validUntil":  "2026-12-31T00:00:00Z",
	}

	var couponID string
	t.Run("Admin creates a coupon", func(t *testing.T) {
		status, env := s.do(http.MethodPost, "/admin/coupons", s.admin, newCoupon)
		require.Equal(t, http.StatusCreated, status)

		var created struct {
			ID        string `json:"id"`
			Code      string `json:"code"`
			CreatedBy string `json:"createdBy"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &created))
		assert.Equal(t, "SUMMER25", created.Code)
		assert.Equal(t, "admin-1", created.CreatedBy)
		couponID = created.ID
	})

	t.Run("Admin looks up by code", func(t *testing.T) {
		status, env := s.do(http.MethodGet, "/admin/coupons/code/Summer25", s.admin, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"id":"`+couponID+`"`)

		status, env = s.do(http.MethodGet, "/admin/coupons/code/NOPE", s.admin, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, 20001, env.Code)
	})

	t.Run("Non-admin cannot create", func(t *testing.T) {
		status, _ := s.do(http.MethodPost, "/admin/coupons", s.user, newCoupon)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("Duplicate code is a conflict", func(t *testing.T) {
		status, env := s.do(http.MethodPost, "/admin/coupons", s.admin, newCoupon)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, 20002, env.Code)
	})

	t.Run("Invalid input lists fields", func(t *testing.T) {
		bad := map[string]interface{}{"code": "x", "type": "percentage", "value": 500,
			"validFrom": "2026-01-01T00:00:00Z", "validUntil": "2026-12-31T00:00:00Z"}
		status, env := s.do(http.MethodPost, "/admin/coupons", s.admin, bad)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(env.Data), `"field":"code"`)
	})

	t.Run("User validates a coupon", func(t *testing.T) {
		status, env := s.do(http.MethodPost, "/coupons/validate", s.user,
			map[string]interface{}{"code": "SUMMER25", "planType": "free", "amount": 999})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 0, env.Code)
		assert.Contains(t, string(env.Data), `"discountAmount":100`)
	})

	t.Run("Rule violation is data, not an HTTP error", func(t *testing.T) {
		status, env := s.do(http.MethodPost, "/coupons/validate", s.user,
			map[string]interface{}{"code": "NOPE", "amount": 999})
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 20004, env.Code)
		assert.Equal(t, "Invalid coupon code", env.Message)
	})

	t.Run("Toggle, patch and read back", func(t *testing.T) {
		status, _ := s.do(http.MethodPost, "/admin/coupons/"+couponID+"/toggle", s.admin, nil)
		require.Equal(t, http.StatusOK, status)

		status, env := s.do(http.MethodPatch, "/admin/coupons/"+couponID, s.admin,
			map[string]interface{}{"description": "summer campaign"})
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"isActive":false`)
		assert.Contains(t, string(env.Data), `"description":"summer campaign"`)
	})

	t.Run("Stats and usages", func(t *testing.T) {
		status, env := s.do(http.MethodGet, "/admin/coupons/stats", s.admin, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"totalCoupons":1`)

		status, env = s.do(http.MethodGet, "/admin/coupons/"+couponID+"/usages?limit=5", s.admin, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"total":0`)

		status, _ = s.do(http.MethodPost, "/admin/coupons/reconcile", s.admin, nil)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Delete then not found", func(t *testing.T) {
		status, _ := s.do(http.MethodDelete, "/admin/coupons/"+couponID, s.admin, nil)
		require.Equal(t, http.StatusOK, status)

		status, env := s.do(http.MethodGet, "/admin/coupons/"+couponID, s.admin, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, 20001, env.Code)
	})
}

package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/internal/pkg/registry"
	"coupon_subscription/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// brokenStore 读操作总是失败
type brokenStore struct{ store.Store }

func (brokenStore) View(context.Context, func(store.Tx) error) error {
	return errors.New("connection refused")
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		store  store.Store
		status int
	}{
		{"Store readable", store.NewMemoryStore(), http.StatusOK},
		{"Store down", brokenStore{}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &registry.ModuleContext{
				Store:  tt.store,
				Router: gin.New(),
				Config: &config.Config{Store: config.StoreConfig{Driver: "memory"}},
				Logger: zap.NewNop(),
			}
			require.NoError(t, (&CommonModule{}).Init(ctx))

			w := httptest.NewRecorder()
			ctx.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

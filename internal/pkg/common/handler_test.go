package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var errDomain = errors.New("domain rule")

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"Domain rule", fmt.Errorf("wrapped: %w", errDomain), http.StatusUnprocessableEntity, `"code":30003`},
		{"Single validation error", apperr.Invalid("code", "is required"), http.StatusBadRequest, `"code":50002`},
		{"Validation errors", apperr.ValidationErrors{apperr.Invalid("value", "too big")}, http.StatusBadRequest, `"field":"value"`},
		{"Not found", apperr.NotFound("coupon", "c1"), http.StatusNotFound, `"code":1`},
		{"Conflict", fmt.Errorf("redeem: %w", store.ErrConflict), http.StatusConflict, `"code":50004`},
		{"Infrastructure", errors.New("disk on fire"), http.StatusInternalServerError, `"code":50001`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, zap.NewNop(), tt.err, ErrorRule{
				Target: errDomain,
				Status: http.StatusUnprocessableEntity,
				Code:   response.ErrInvalidTransition,
			})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestBindPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3", nil)

	p, ok := BindPagination(c)
	assert.True(t, ok)
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

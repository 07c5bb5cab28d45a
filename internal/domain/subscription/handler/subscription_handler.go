package handler

import (
	"net/http"

	"coupon_subscription/internal/domain/subscription/service"
	"coupon_subscription/internal/pkg/common"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *zap.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, log: log}
}

// SubscriptionErrors 订阅相关错误到业务码的映射，兑换模块复用
var SubscriptionErrors = []common.ErrorRule{
	{Target: apperr.ErrNotFound, Status: http.StatusNotFound, Code: response.ErrSubscriptionNotFound},
	{Target: service.ErrNoActiveTrial, Status: http.StatusUnprocessableEntity, Code: response.ErrNoActiveTrial},
	{Target: service.ErrInvalidTransition, Status: http.StatusUnprocessableEntity, Code: response.ErrInvalidTransition},
	{Target: service.ErrUnsupportedPlan, Status: http.StatusUnprocessableEntity, Code: response.ErrUnsupportedPlan},
}

func (h *SubscriptionHandler) fail(c *gin.Context, err error) {
	common.RespondError(c, h.log, err, SubscriptionErrors...)
}

func (h *SubscriptionHandler) currentUserID(c *gin.Context) (string, bool) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return "", false
	}
	return user.ID, true
}

// GetMySubscription 当前计划能力与订阅，首次访问时建立 free 订阅
func (h *SubscriptionHandler) GetMySubscription(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if _, err := h.service.EnsureActive(c.Request.Context(), userID); err != nil {
		h.fail(c, err)
		return
	}
	snapshot, err := h.service.GetFeatures(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, snapshot)
}

func (h *SubscriptionHandler) CheckAccess(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	feature := c.Param("feature")
	allowed, err := h.service.HasAccess(c.Request.Context(), userID, feature)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"feature": feature, "hasAccess": allowed})
}

func (h *SubscriptionHandler) MyHistory(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	subs, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, subs)
}

func (h *SubscriptionHandler) CancelMine(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	sub, err := h.service.CancelActive(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

func (h *SubscriptionHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *SubscriptionHandler) Cleanup(c *gin.Context) {
	expired, err := h.service.Cleanup(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"expired": expired})
}

func (h *SubscriptionHandler) Expire(c *gin.Context) {
	sub, err := h.service.Expire(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	sub, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

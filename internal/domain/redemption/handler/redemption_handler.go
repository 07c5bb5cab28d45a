package handler

import (
	"errors"
	"net/http"

	"coupon_subscription/internal/domain/redemption/model"
	"coupon_subscription/internal/domain/redemption/service"
	subHandler "coupon_subscription/internal/domain/subscription/handler"
	subModel "coupon_subscription/internal/domain/subscription/model"
	"coupon_subscription/internal/pkg/common"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RedemptionHandler struct {
	service service.RedemptionService
	log     *zap.Logger
}

func NewRedemptionHandler(service service.RedemptionService, log *zap.Logger) *RedemptionHandler {
	return &RedemptionHandler{service: service, log: log}
}

// NotFound 以兑换记录为准，其余订阅错误沿用订阅模块的映射
var redemptionErrors = append([]common.ErrorRule{
	{Target: apperr.ErrNotFound, Status: http.StatusNotFound, Code: response.ErrRedemptionNotFound},
}, subHandler.SubscriptionErrors...)

func (h *RedemptionHandler) fail(c *gin.Context, err error) {
	var pending *model.PendingSubscriptionError
	if errors.As(err, &pending) {
		// 使用记录已保留，客户端凭 usage id 调用 resume
		response.ErrorWithData(c, http.StatusServiceUnavailable, response.ErrSubscriptionPending,
			"Coupon redeemed but subscription update is pending, please retry", gin.H{"redemption": pending.Usage})
		return
	}
	common.RespondError(c, h.log, err, redemptionErrors...)
}

// RedeemRequest 兑换请求体，用户信息取自令牌
type RedeemRequest struct {
	Code         string `json:"code" binding:"required"`
	PlanType     string `json:"planType" binding:"required,oneof=free trial pro"`
	BillingCycle string `json:"billingCycle" binding:"omitempty,oneof=monthly yearly"`
}

func (h *RedemptionHandler) Redeem(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), model.RedeemInput{
		Code:         req.Code,
		PlanType:     subModel.PlanType(req.PlanType),
		BillingCycle: model.BillingCycle(req.BillingCycle),
		UserID:       user.ID,
		UserEmail:    user.Email,
		UserRole:     user.Role,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !result.Validation.IsValid {
		response.Fail(c, response.ErrCouponNotEligible, result.Validation.Error, result)
		return
	}
	response.Success(c, result)
}

func (h *RedemptionHandler) Resume(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}
	result, err := h.service.Resume(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

func (h *RedemptionHandler) History(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}
	p, ok := common.BindPagination(c)
	if !ok {
		return
	}
	page, err := h.service.History(c.Request.Context(), user.ID, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, page)
}

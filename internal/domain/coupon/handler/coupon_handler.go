package handler

import (
	"net/http"

	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/domain/coupon/service"
	"coupon_subscription/internal/pkg/common"
	"coupon_subscription/internal/pkg/middleware"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/response"
	"coupon_subscription/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CouponHandler struct {
	service service.CouponService
	log     *zap.Logger
}

func NewCouponHandler(service service.CouponService, log *zap.Logger) *CouponHandler {
	return &CouponHandler{service: service, log: log}
}

var couponErrors = []common.ErrorRule{
	{Target: apperr.ErrNotFound, Status: http.StatusNotFound, Code: response.ErrCouponNotFound},
	{Target: service.ErrCodeTaken, Status: http.StatusConflict, Code: response.ErrCouponCodeTaken},
	{Target: service.ErrUsageLimitReached, Status: http.StatusUnprocessableEntity, Code: response.ErrCouponUsageLimit},
}

func (h *CouponHandler) fail(c *gin.Context, err error) {
	common.RespondError(c, h.log, err, couponErrors...)
}

// ValidateCouponInput 校验请求，用户身份取自令牌
type ValidateCouponInput struct {
	Code     string  `json:"code" binding:"required"`
	PlanType string  `json:"planType" binding:"omitempty,oneof=free trial pro"`
	Amount   float64 `json:"amount" binding:"gte=0"`
}

// ValidateCoupon 校验优惠券，规则不满足时返回 HTTP 200 与业务码
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	var input ValidateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.Validate(c.Request.Context(), model.ValidateInput{
		Code:     input.Code,
		UserID:   user.ID,
		UserRole: user.Role,
		PlanType: input.PlanType,
		Amount:   input.Amount,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !result.IsValid {
		response.Fail(c, response.ErrCouponNotEligible, result.Error, result)
		return
	}
	response.Success(c, result)
}

func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var input model.CreateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if user, ok := middleware.GetCurrentUser(c); ok {
		input.CreatedBy = user.ID
	}

	coupon, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, coupon)
}

func (h *CouponHandler) ListCoupons(c *gin.Context) {
	p, ok := common.BindPagination(c)
	if !ok {
		return
	}
	page, err := h.service.List(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, page)
}

func (h *CouponHandler) GetCoupon(c *gin.Context) {
	coupon, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, coupon)
}

// GetCouponByCode 按券码查询，大小写不敏感
func (h *CouponHandler) GetCouponByCode(c *gin.Context) {
	coupon, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, coupon)
}

func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	var input model.UpdateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	coupon, err := h.service.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, coupon)
}

func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *CouponHandler) ToggleCoupon(c *gin.Context) {
	coupon, err := h.service.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, coupon)
}

// CouponUsages 单张优惠券的使用记录
func (h *CouponHandler) CouponUsages(c *gin.Context) {
	h.usageHistory(c, model.UsageFilter{CouponID: c.Param("id")})
}

// UsageHistory 按 couponId / userId 过滤的使用记录
func (h *CouponHandler) UsageHistory(c *gin.Context) {
	var filter model.UsageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	h.usageHistory(c, filter)
}

func (h *CouponHandler) usageHistory(c *gin.Context, filter model.UsageFilter) {
	p, ok := common.BindPagination(c)
	if !ok {
		return
	}
	usages, err := h.service.GetUsageHistory(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, utils.Paginate(usages, p))
}

func (h *CouponHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CouponHandler) Reconcile(c *gin.Context) {
	corrected, err := h.service.ReconcileUsage(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"corrected": corrected})
}

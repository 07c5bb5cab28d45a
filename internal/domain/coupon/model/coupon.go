package model

import (
	"time"

	baseModel "coupon_subscription/pkg/model"
)

// CouponType 优惠券类型
type CouponType string

const (
	TypePercentage     CouponType = "percentage"      // 按比例折扣，value 为 1-100
	TypeFixed          CouponType = "fixed"           // 固定金额折扣
	TypeTrialExtension CouponType = "trial_extension" // value 为延长的试用天数
	TypeUpgradePromo   CouponType = "upgrade_promo"   // 升级活动，不产生折扣金额
)

// Coupon 优惠券定义
type Coupon struct {
	baseModel.BaseModel
	Code           string                 `json:"code"`
	Description    string                 `json:"description"`
	Type           CouponType             `json:"type"`
	Value          float64                `json:"value"`
	MinAmount      *float64               `json:"minAmount,omitempty"`
	MaxDiscount    *float64               `json:"maxDiscount,omitempty"`
	UsageLimit     *int                   `json:"usageLimit,omitempty"`
	UserUsageLimit *int                   `json:"userUsageLimit,omitempty"`
	UsedCount      int                    `json:"usedCount"` // 使用记录的缓存计数，以使用记录为准
	IsActive       bool                   `json:"isActive"`
	ValidFrom      time.Time              `json:"validFrom"`
	ValidUntil     time.Time              `json:"validUntil"` // 闭区间
	EligibleRoles  []string               `json:"eligibleRoles,omitempty"`
	EligiblePlans  []string               `json:"eligiblePlans,omitempty"`
	CreatedBy      string                 `json:"createdBy"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// IsExpired validUntil 已过
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ValidUntil.Before(now)
}

// CouponUsage 使用记录，只追加，写入后不可修改
type CouponUsage struct {
	ID             string    `json:"id"`
	CouponID       string    `json:"couponId"`
	CouponCode     string    `json:"couponCode"`
	UserID         string    `json:"userId"`
	UserEmail      string    `json:"userEmail"`
	DiscountAmount float64   `json:"discountAmount"`
	OriginalAmount float64   `json:"originalAmount"`
	FinalAmount    float64   `json:"finalAmount"`
	PlanType       string    `json:"planType"`
	UsedAt         time.Time `json:"usedAt"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
}

// ValidationResult 校验结果。业务规则不满足时 IsValid=false 并附带 Error，而不是返回 error
type ValidationResult struct {
	IsValid        bool     `json:"isValid"`
	Coupon         *Coupon  `json:"coupon,omitempty"`
	DiscountAmount float64  `json:"discountAmount"`
	FinalAmount    float64  `json:"finalAmount"`
	Error          string   `json:"error,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// ValidateInput 校验请求
type ValidateInput struct {
	Code     string  `json:"code"`
	UserID   string  `json:"userId"`
	UserRole string  `json:"userRole"`
	PlanType string  `json:"planType"`
	Amount   float64 `json:"amount"`
}

// ClientInfo 兑换时记录的客户端信息
type ClientInfo struct {
	UserEmail string
	IPAddress string
	UserAgent string
}

// RecordUsageInput 写入使用记录
type RecordUsageInput struct {
	CouponID       string
	UserID         string
	UserEmail      string
	DiscountAmount float64
	OriginalAmount float64
	FinalAmount    float64
	PlanType       string
	IPAddress      string
	UserAgent      string
}

// UsageFilter 使用记录过滤条件，空字段不过滤
type UsageFilter struct {
	CouponID string `form:"couponId"`
	UserID   string `form:"userId"`
}

package model

import "time"

// CreateCouponInput 创建优惠券
type CreateCouponInput struct {
	Code           string                 `json:"code" validate:"required,couponcode"`
	Description    string                 `json:"description" validate:"max=500"`
	Type           CouponType             `json:"type" validate:"required,oneof=percentage fixed trial_extension upgrade_promo"`
	Value          float64                `json:"value"`
	MinAmount      *float64               `json:"minAmount" validate:"omitempty,gte=0"`
	MaxDiscount    *float64               `json:"maxDiscount" validate:"omitempty,gt=0"`
	UsageLimit     *int                   `json:"usageLimit" validate:"omitempty,min=1,max=1000000"`
	UserUsageLimit *int                   `json:"userUsageLimit" validate:"omitempty,min=1,max=1000"`
	IsActive       *bool                  `json:"isActive"`
	ValidFrom      time.Time              `json:"validFrom" validate:"required"`
	ValidUntil     time.Time              `json:"validUntil" validate:"required"`
	EligibleRoles  []string               `json:"eligibleRoles" validate:"omitempty,dive,required"`
	EligiblePlans  []string               `json:"eligiblePlans" validate:"omitempty,dive,oneof=free trial pro"`
	CreatedBy      string                 `json:"createdBy"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// UpdateCouponInput 部分更新，nil 字段保持不变，只校验传入的字段
type UpdateCouponInput struct {
	Code           *string                `json:"code" validate:"omitempty,couponcode"`
	Description    *string                `json:"description" validate:"omitempty,max=500"`
	Type           *CouponType            `json:"type" validate:"omitempty,oneof=percentage fixed trial_extension upgrade_promo"`
	Value          *float64               `json:"value"`
	MinAmount      *float64               `json:"minAmount" validate:"omitempty,gte=0"`
	MaxDiscount    *float64               `json:"maxDiscount" validate:"omitempty,gt=0"`
	UsageLimit     *int                   `json:"usageLimit" validate:"omitempty,min=1,max=1000000"`
	UserUsageLimit *int                   `json:"userUsageLimit" validate:"omitempty,min=1,max=1000"`
	IsActive       *bool                  `json:"isActive"`
	ValidFrom      *time.Time             `json:"validFrom"`
	ValidUntil     *time.Time             `json:"validUntil"`
	EligibleRoles  []string               `json:"eligibleRoles" validate:"omitempty,dive,required"`
	EligiblePlans  []string               `json:"eligiblePlans" validate:"omitempty,dive,oneof=free trial pro"`
	Metadata       map[string]interface{} `json:"metadata"`
}

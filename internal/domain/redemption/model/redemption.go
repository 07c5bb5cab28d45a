package model

import (
	"fmt"

	couponModel "coupon_subscription/internal/domain/coupon/model"
	subModel "coupon_subscription/internal/domain/subscription/model"
)

// BillingCycle 计费周期
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// RedeemInput 兑换请求，PlanType 为目标计划，用于定价和计划资格校验，须与券类型对应
type RedeemInput struct {
	Code         string
	PlanType     subModel.PlanType
	BillingCycle BillingCycle
	UserID       string
	UserEmail    string
	UserRole     string
	IPAddress    string
	UserAgent    string
}

// RedeemResult 兑换结果；校验不通过时只有 Validation
type RedeemResult struct {
	Validation   *couponModel.ValidationResult `json:"validation"`
	Redemption   *couponModel.CouponUsage      `json:"redemption,omitempty"`
	Subscription *subModel.UserSubscription    `json:"subscription,omitempty"`
}

// PendingSubscriptionError 使用记录已写入但订阅变更失败，可通过 Resume 重试，不会重复记账
type PendingSubscriptionError struct {
	Usage *couponModel.CouponUsage
	Err   error
}

func (e *PendingSubscriptionError) Error() string {
	return fmt.Sprintf("usage %s recorded for coupon %s but subscription update failed: %v",
		e.Usage.ID, e.Usage.CouponCode, e.Err)
}

func (e *PendingSubscriptionError) Unwrap() error {
	return e.Err
}

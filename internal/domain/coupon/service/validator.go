package service

import (
	"fmt"
	"slices"
	"time"

	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/domain/coupon/repository"

	"github.com/shopspring/decimal"
)

// 规则校验失败时返回给调用方的提示
const (
	MsgInvalidCode     = "Invalid coupon code"
	MsgInactive        = "Coupon is inactive"
	MsgNotYetValid     = "Coupon is not yet valid"
	MsgExpired         = "Coupon has expired"
	MsgRoleNotEligible = "Coupon is not available for your role"
	MsgPlanNotEligible = "Coupon is not available for your plan"
	MsgUsageLimit      = "Coupon usage limit reached"
	MsgAlreadyUsed     = "You have already used this coupon"
)

const expiryWarningWindow = 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// ValidateCoupon 按顺序检查，第一条不满足的规则即返回。纯函数，不做任何写入。
// coupon 为 nil 表示券码不存在；usages 为该券的使用记录（可以包含其他券的记录）。
func ValidateCoupon(coupon *model.Coupon, usages []model.CouponUsage, in model.ValidateInput, now time.Time) model.ValidationResult {
	if coupon == nil {
		return invalid(MsgInvalidCode)
	}
	if !coupon.IsActive {
		return invalid(MsgInactive)
	}
	if now.Before(coupon.ValidFrom) {
		return invalid(MsgNotYetValid)
	}
	if now.After(coupon.ValidUntil) {
		return invalid(MsgExpired)
	}
	if len(coupon.EligibleRoles) > 0 && !slices.Contains(coupon.EligibleRoles, in.UserRole) {
		return invalid(MsgRoleNotEligible)
	}
	if len(coupon.EligiblePlans) > 0 && !slices.Contains(coupon.EligiblePlans, in.PlanType) {
		return invalid(MsgPlanNotEligible)
	}

	amount := decimal.NewFromFloat(in.Amount)
	if coupon.MinAmount != nil {
		minAmount := decimal.NewFromFloat(*coupon.MinAmount)
		if amount.LessThan(minAmount) {
			return invalid(fmt.Sprintf("Minimum amount of %s required", minAmount.String()))
		}
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return invalid(MsgUsageLimit)
	}
	if coupon.UserUsageLimit != nil &&
		repository.CountUsage(usages, coupon.ID, in.UserID) >= *coupon.UserUsageLimit {
		return invalid(MsgAlreadyUsed)
	}

	discount, capped := computeDiscount(coupon, amount)
	final := amount.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	var warnings []string
	if coupon.ValidUntil.Sub(now) < expiryWarningWindow {
		warnings = append(warnings, "Coupon expires within 24 hours")
	}
	if capped {
		warnings = append(warnings, fmt.Sprintf("Discount capped at %s", decimal.NewFromFloat(*coupon.MaxDiscount).String()))
	}
	if coupon.UsageLimit != nil && *coupon.UsageLimit-coupon.UsedCount == 1 {
		warnings = append(warnings, "Only one use of this coupon remains")
	}

	return model.ValidationResult{
		IsValid:        true,
		Coupon:         coupon,
		DiscountAmount: discount.InexactFloat64(),
		FinalAmount:    final.InexactFloat64(),
		Warnings:       warnings,
	}
}

// computeDiscount 返回折扣金额以及是否被 maxDiscount 截断
func computeDiscount(coupon *model.Coupon, amount decimal.Decimal) (decimal.Decimal, bool) {
	value := decimal.NewFromFloat(coupon.Value)
	switch coupon.Type {
	case model.TypePercentage:
		d := amount.Mul(value).Div(hundred)
		if coupon.MaxDiscount != nil {
			maxDiscount := decimal.NewFromFloat(*coupon.MaxDiscount)
			if d.GreaterThan(maxDiscount) {
				return maxDiscount, true
			}
		}
		return d, false
	case model.TypeFixed:
		return decimal.Min(value, amount), false
	default:
		// trial_extension / upgrade_promo 的 value 不是金额
		return decimal.Zero, false
	}
}

func invalid(msg string) model.ValidationResult {
	return model.ValidationResult{IsValid: false, Error: msg}
}

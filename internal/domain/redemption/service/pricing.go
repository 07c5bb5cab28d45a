package service

import (
	"coupon_subscription/internal/domain/redemption/model"
	subModel "coupon_subscription/internal/domain/subscription/model"
	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/pkg/apperr"
)

// PriceTable 计划 × 计费周期 → 金额，free 与 trial 为 0
type PriceTable struct {
	proMonthly float64
	proYearly  float64
}

func NewPriceTable(cfg config.PricingConfig) PriceTable {
	return PriceTable{proMonthly: cfg.Pro.Monthly, proYearly: cfg.Pro.Yearly}
}

// Price 计费周期为空时按月
func (p PriceTable) Price(plan subModel.PlanType, cycle model.BillingCycle) (float64, error) {
	if cycle == "" {
		cycle = model.CycleMonthly
	}
	if cycle != model.CycleMonthly && cycle != model.CycleYearly {
		return 0, apperr.Invalid("billingCycle", "must be monthly or yearly")
	}
	switch plan {
	case subModel.PlanFree, subModel.PlanTrial:
		return 0, nil
	case subModel.PlanPro:
		if cycle == model.CycleYearly {
			return p.proYearly, nil
		}
		return p.proMonthly, nil
	default:
		return 0, apperr.Invalid("planType", "must be one of free, trial, pro")
	}
}

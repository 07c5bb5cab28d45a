package service

import (
	"context"
	"fmt"

	"coupon_subscription/internal/domain/subscription/model"
	"coupon_subscription/internal/store"

	"github.com/shopspring/decimal"
)

func (s *subscriptionService) GetStats(ctx context.Context) (*model.SubscriptionStats, error) {
	var subs []model.UserSubscription
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		subs, err = s.repo.List(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("subscription stats: %w", err)
	}
	return buildStats(subs, decimal.NewFromFloat(s.proPrice)), nil
}

// buildStats 收入 = Σ(pro 月价 - 折扣)，只统计 active 的 pro 订阅，单条不低于 0
func buildStats(subs []model.UserSubscription, proPrice decimal.Decimal) *model.SubscriptionStats {
	stats := &model.SubscriptionStats{
		Total:        len(subs),
		ByStatus:     map[model.Status]int{},
		ByPlan:       map[model.PlanType]int{},
		ActiveByPlan: map[model.PlanType]int{},
	}

	revenue := decimal.Zero
	trialUsers := map[string]bool{}
	proUsers := map[string]bool{}
	for _, sub := range subs {
		stats.ByStatus[sub.Status]++
		stats.ByPlan[sub.PlanType]++
		switch sub.PlanType {
		case model.PlanTrial:
			trialUsers[sub.UserID] = true
		case model.PlanPro:
			proUsers[sub.UserID] = true
		}
		if sub.Status != model.StatusActive {
			continue
		}
		stats.ActiveByPlan[sub.PlanType]++
		if sub.PlanType == model.PlanPro {
			paid := proPrice
			if sub.DiscountApplied != nil {
				paid = paid.Sub(decimal.NewFromFloat(*sub.DiscountApplied))
			}
			if paid.IsPositive() {
				revenue = revenue.Add(paid)
			}
		}
	}

	for user := range trialUsers {
		if proUsers[user] {
			stats.TrialConversions++
		}
	}
	stats.MonthlyRevenue = revenue.InexactFloat64()
	if len(trialUsers) > 0 {
		stats.ConversionRate = decimal.NewFromInt(int64(stats.TrialConversions)).
			Div(decimal.NewFromInt(int64(len(trialUsers)))).
			Round(4).
			InexactFloat64()
	}
	return stats
}

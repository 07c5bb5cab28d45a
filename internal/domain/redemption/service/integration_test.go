package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	couponModel "coupon_subscription/internal/domain/coupon/model"
	couponService "coupon_subscription/internal/domain/coupon/service"
	"coupon_subscription/internal/domain/redemption/model"
	subModel "coupon_subscription/internal/domain/subscription/model"
	subService "coupon_subscription/internal/domain/subscription/service"
	"coupon_subscription/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stack struct {
	coupons couponService.CouponService
	subs    subService.SubscriptionService
	svc     RedemptionService

	mu  sync.Mutex
	now time.Time
}

func newStack(t *testing.T) *stack {
	t.Helper()
	st := store.NewMemoryStore()
	s := &stack{now: usedAt}
	s.coupons = couponService.NewCouponService(st, zap.NewNop(), couponService.WithClock(s.clock))
	s.subs = subService.NewSubscriptionService(st, zap.NewNop(), subService.WithClock(s.clock))
	s.svc = NewRedemptionService(s.coupons, s.subs, prices, zap.NewNop())
	return s
}

func (s *stack) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stack) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *stack) coupon(t *testing.T, in couponModel.CreateCouponInput) *couponModel.Coupon {
	t.Helper()
	in.ValidFrom = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in.ValidUntil = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	c, err := s.coupons.Create(ctx, in)
	require.NoError(t, err)
	return c
}

func TestRedeemFlow_ConcurrentRedemptionsRespectUsageLimit(t *testing.T) {
	s := newStack(t)
	limit := 5
	s.coupon(t, couponModel.CreateCouponInput{
		Code: "LAUNCH100", Type: couponModel.TypeFixed, Value: 100, UsageLimit: &limit,
	})

	const users = 30
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := s.svc.Redeem(ctx, model.RedeemInput{
				Code: "launch100", PlanType: subModel.PlanPro, UserID: fmt.Sprintf("user-%d", i),
			})
			if !assert.NoError(t, err) {
				return
			}
			if result.Validation.IsValid {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit, success)
	usages, err := s.coupons.GetUsageHistory(ctx, couponModel.UsageFilter{})
	require.NoError(t, err)
	assert.Len(t, usages, limit)

	stats, err := s.subs.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, limit, stats.ActiveByPlan[subModel.PlanPro])
}

func TestRedeemFlow_UpgradeRecordsDiscount(t *testing.T) {
	s := newStack(t)
	s.coupon(t, couponModel.CreateCouponInput{Code: "HALF", Type: couponModel.TypePercentage, Value: 50})

	result, err := s.svc.Redeem(ctx, model.RedeemInput{Code: "HALF", PlanType: subModel.PlanPro, UserID: "u1"})
	require.NoError(t, err)
	require.True(t, result.Validation.IsValid)
	assert.Equal(t, 499.5, result.Redemption.DiscountAmount)
	assert.Equal(t, 499.5, result.Redemption.FinalAmount)
	assert.Equal(t, "pro", result.Redemption.PlanType)

	require.NotNil(t, result.Subscription)
	assert.Equal(t, subModel.PlanPro, result.Subscription.PlanType)
	assert.Equal(t, "HALF", result.Subscription.CouponUsed)
	assert.Equal(t, 499.5, *result.Subscription.DiscountApplied)

	t.Run("Resume after success changes nothing", func(t *testing.T) {
		resumed, err := s.svc.Resume(ctx, "u1", result.Redemption.ID)
		require.NoError(t, err)
		assert.Equal(t, result.Subscription.ID, resumed.Subscription.ID)

		history, err := s.subs.ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("Resume after the upgrade lapses grants nothing", func(t *testing.T) {
		s.advance(40 * 24 * time.Hour)
		active, err := s.subs.GetActive(ctx, "u1")
		require.NoError(t, err)
		require.Nil(t, active)

		resumed, err := s.svc.Resume(ctx, "u1", result.Redemption.ID)
		require.NoError(t, err)
		assert.Equal(t, subModel.StatusExpired, resumed.Subscription.Status)

		active, err = s.subs.GetActive(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, active)
		history, err := s.subs.ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}

func TestRedeemFlow_PlanMismatchRecordsNothing(t *testing.T) {
	s := newStack(t)
	c := s.coupon(t, couponModel.CreateCouponInput{Code: "TENOFF", Type: couponModel.TypePercentage, Value: 10})

	_, err := s.svc.Redeem(ctx, model.RedeemInput{Code: "TENOFF", PlanType: subModel.PlanTrial, UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be pro for percentage coupons")

	usages, err := s.coupons.GetUsageHistory(ctx, couponModel.UsageFilter{CouponID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, usages)
	subs, err := s.subs.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRedeemFlow_TrialExtension(t *testing.T) {
	s := newStack(t)
	s.coupon(t, couponModel.CreateCouponInput{Code: "TRIAL14", Type: couponModel.TypeTrialExtension, Value: 14})
	_, err := s.subs.Create(ctx, subModel.CreateInput{UserID: "u1", PlanType: subModel.PlanTrial})
	require.NoError(t, err)

	result, err := s.svc.Redeem(ctx, model.RedeemInput{Code: "TRIAL14", PlanType: subModel.PlanTrial, UserID: "u1"})
	require.NoError(t, err)
	require.True(t, result.Validation.IsValid)
	assert.Zero(t, result.Redemption.DiscountAmount)
	assert.Equal(t, usedAt.Add(21*24*time.Hour), *result.Subscription.TrialEndDate)

	t.Run("Replaying resume does not extend again", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			resumed, err := s.svc.Resume(ctx, "u1", result.Redemption.ID)
			require.NoError(t, err)
			assert.Equal(t, usedAt.Add(21*24*time.Hour), *resumed.Subscription.TrialEndDate)
		}

		active, err := s.subs.GetActive(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, usedAt.Add(21*24*time.Hour), *active.EndDate)
		usages, err := s.coupons.GetUsageHistory(ctx, couponModel.UsageFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Len(t, usages, 1)
	})

	t.Run("New user gets a fresh trial", func(t *testing.T) {
		result, err := s.svc.Redeem(ctx, model.RedeemInput{Code: "TRIAL14", PlanType: subModel.PlanTrial, UserID: "u2"})
		require.NoError(t, err)
		assert.Equal(t, subModel.PlanTrial, result.Subscription.PlanType)
		assert.Equal(t, "TRIAL14", result.Subscription.CouponUsed)
	})
}

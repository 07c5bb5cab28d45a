package service

import (
	"context"
	"errors"
	"fmt"

	couponModel "coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/domain/redemption/model"
	subModel "coupon_subscription/internal/domain/subscription/model"
	subService "coupon_subscription/internal/domain/subscription/service"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/metrics"
	"coupon_subscription/pkg/utils"

	"go.uber.org/zap"
)

// Coupons 兑换流程用到的优惠券能力
type Coupons interface {
	Redeem(ctx context.Context, in couponModel.ValidateInput, client couponModel.ClientInfo) (*couponModel.ValidationResult, *couponModel.CouponUsage, error)
	GetByID(ctx context.Context, id string) (*couponModel.Coupon, error)
	GetByCode(ctx context.Context, code string) (*couponModel.Coupon, error)
	GetUsage(ctx context.Context, id string) (*couponModel.CouponUsage, error)
	GetUsageHistory(ctx context.Context, filter couponModel.UsageFilter) ([]couponModel.CouponUsage, error)
}

// Subscriptions 兑换流程用到的订阅能力
type Subscriptions interface {
	GetActive(ctx context.Context, userID string) (*subModel.UserSubscription, error)
	Create(ctx context.Context, in subModel.CreateInput) (*subModel.UserSubscription, error)
	Upgrade(ctx context.Context, in subModel.CreateInput) (*subModel.UserSubscription, error)
	ExtendTrial(ctx context.Context, in subModel.ExtendTrialInput) (*subModel.UserSubscription, error)
	FindByUsage(ctx context.Context, userID, usageID string) (*subModel.UserSubscription, error)
}

type RedemptionService interface {
	// Redeem 先记账再变更订阅；订阅失败时返回 *model.PendingSubscriptionError
	Redeem(ctx context.Context, in model.RedeemInput) (*model.RedeemResult, error)
	// Resume 对尚未生效的使用记录执行订阅变更；已生效过的直接返回当时的订阅，不再变更
	Resume(ctx context.Context, userID, usageID string) (*model.RedeemResult, error)
	History(ctx context.Context, userID string, p utils.Pagination) (utils.PageResult, error)
}

type redemptionService struct {
	coupons Coupons
	subs    Subscriptions
	prices  PriceTable
	log     *zap.Logger
	metrics *metrics.MetricsCollector
}

type Option func(*redemptionService)

func WithMetrics(m *metrics.MetricsCollector) Option {
	return func(s *redemptionService) { s.metrics = m }
}

func NewRedemptionService(coupons Coupons, subs Subscriptions, prices PriceTable, log *zap.Logger, opts ...Option) RedemptionService {
	s := &redemptionService{
		coupons: coupons,
		subs:    subs,
		prices:  prices,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *redemptionService) Redeem(ctx context.Context, in model.RedeemInput) (*model.RedeemResult, error) {
	if in.UserID == "" {
		return nil, apperr.Invalid("userId", "is required")
	}
	amount, err := s.prices.Price(in.PlanType, in.BillingCycle)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlan(ctx, in); err != nil {
		return nil, err
	}

	validation, usage, err := s.coupons.Redeem(ctx,
		couponModel.ValidateInput{
			Code:     in.Code,
			UserID:   in.UserID,
			UserRole: in.UserRole,
			PlanType: string(in.PlanType),
			Amount:   amount,
		},
		couponModel.ClientInfo{
			UserEmail: in.UserEmail,
			IPAddress: in.IPAddress,
			UserAgent: in.UserAgent,
		},
	)
	if err != nil {
		s.metrics.RecordRedemption("unknown", "error")
		return nil, err
	}
	result := &model.RedeemResult{Validation: validation}
	if !validation.IsValid {
		s.metrics.RecordRedemption("unknown", "invalid")
		return result, nil
	}
	result.Redemption = usage

	coupon := validation.Coupon
	sub, err := s.apply(ctx, coupon, usage)
	if err != nil {
		s.metrics.RecordRedemption(string(coupon.Type), "pending")
		s.log.Error("subscription update failed after usage was recorded",
			zap.String("usage_id", usage.ID),
			zap.String("user_id", usage.UserID),
			zap.String("code", usage.CouponCode),
			zap.Error(err),
		)
		return result, &model.PendingSubscriptionError{Usage: usage, Err: err}
	}
	result.Subscription = sub
	s.metrics.RecordRedemption(string(coupon.Type), "success")
	return result, nil
}

// targetPlan 券类型决定兑换的计划：试用延期对应 trial，其余对应 pro
func targetPlan(t couponModel.CouponType) subModel.PlanType {
	if t == couponModel.TypeTrialExtension {
		return subModel.PlanTrial
	}
	return subModel.PlanPro
}

// checkPlan 请求的计划必须与券实际变更的计划一致，否则定价与结果不符
func (s *redemptionService) checkPlan(ctx context.Context, in model.RedeemInput) error {
	coupon, err := s.coupons.GetByCode(ctx, in.Code)
	if errors.Is(err, apperr.ErrNotFound) {
		// 未知券码交给 Redeem 返回校验结果
		return nil
	}
	if err != nil {
		return err
	}
	if want := targetPlan(coupon.Type); in.PlanType != want {
		return apperr.Invalid("planType", "must be %s for %s coupons", want, coupon.Type)
	}
	return nil
}

// apply 按券类型变更订阅：试用延期优先延长当前试用，其余类型升级到 pro
func (s *redemptionService) apply(ctx context.Context, coupon *couponModel.Coupon, usage *couponModel.CouponUsage) (*subModel.UserSubscription, error) {
	if coupon.Type == couponModel.TypeTrialExtension {
		active, err := s.subs.GetActive(ctx, usage.UserID)
		if err != nil {
			return nil, err
		}
		if active != nil && active.PlanType == subModel.PlanTrial {
			sub, err := s.subs.ExtendTrial(ctx, subModel.ExtendTrialInput{
				UserID:  usage.UserID,
				Days:    int(coupon.Value),
				UsageID: usage.ID,
			})
			if !errors.Is(err, subService.ErrNoActiveTrial) {
				return sub, err
			}
			// 试用在两次调用之间到期，改为新建试用
		}
		return s.subs.Create(ctx, subModel.CreateInput{
			UserID:     usage.UserID,
			PlanType:   subModel.PlanTrial,
			CouponCode: usage.CouponCode,
			UsageID:    usage.ID,
		})
	}

	discount := usage.DiscountAmount
	return s.subs.Upgrade(ctx, subModel.CreateInput{
		UserID:          usage.UserID,
		PlanType:        subModel.PlanPro,
		CouponCode:      usage.CouponCode,
		DiscountApplied: &discount,
		UsageID:         usage.ID,
	})
}

func (s *redemptionService) Resume(ctx context.Context, userID, usageID string) (*model.RedeemResult, error) {
	usage, err := s.coupons.GetUsage(ctx, usageID)
	if err != nil {
		return nil, err
	}
	if usage.UserID != userID {
		return nil, apperr.NotFound("coupon usage", usageID)
	}
	result := &model.RedeemResult{Redemption: usage}

	applied, err := s.subs.FindByUsage(ctx, userID, usage.ID)
	if err != nil {
		return nil, fmt.Errorf("resume redemption: %w", err)
	}
	if applied != nil {
		result.Subscription = applied
		return result, nil
	}

	coupon, err := s.coupons.GetByID(ctx, usage.CouponID)
	if err != nil {
		return nil, fmt.Errorf("resume redemption: %w", err)
	}
	sub, err := s.apply(ctx, coupon, usage)
	if errors.Is(err, subService.ErrUsageApplied) {
		// 并发的 Resume 已经先一步生效
		if prior, findErr := s.subs.FindByUsage(ctx, userID, usage.ID); findErr == nil && prior != nil {
			result.Subscription = prior
			return result, nil
		}
	}
	if err != nil {
		return nil, &model.PendingSubscriptionError{Usage: usage, Err: err}
	}
	s.log.Info("redemption resumed",
		zap.String("usage_id", usage.ID),
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.ID),
	)
	result.Subscription = sub
	return result, nil
}

func (s *redemptionService) History(ctx context.Context, userID string, p utils.Pagination) (utils.PageResult, error) {
	usages, err := s.coupons.GetUsageHistory(ctx, couponModel.UsageFilter{UserID: userID})
	if err != nil {
		return utils.PageResult{}, err
	}
	return utils.Paginate(usages, p), nil
}

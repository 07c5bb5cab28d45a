package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/domain/coupon/repository"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/cache"
	"coupon_subscription/pkg/metrics"
	"coupon_subscription/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCodeTaken         = errors.New("coupon code already exists")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

const (
	statsCacheKey = "stats:coupons"
	statsCacheTTL = time.Minute
	topCouponsN   = 5
)

type CouponService interface {
	Validate(ctx context.Context, in model.ValidateInput) (*model.ValidationResult, error)
	// RecordUsage 写入使用记录并刷新 usedCount；限额在同一事务内再次检查
	RecordUsage(ctx context.Context, in model.RecordUsageInput) (*model.CouponUsage, error)
	// Redeem 校验与记录在一个事务内完成；校验不通过时不写入任何数据
	Redeem(ctx context.Context, in model.ValidateInput, client model.ClientInfo) (*model.ValidationResult, *model.CouponUsage, error)

	Create(ctx context.Context, in model.CreateCouponInput) (*model.Coupon, error)
	GetByID(ctx context.Context, id string) (*model.Coupon, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	List(ctx context.Context, p utils.Pagination) (utils.PageResult, error)
	Update(ctx context.Context, id string, in model.UpdateCouponInput) (*model.Coupon, error)
	Delete(ctx context.Context, id string) error
	ToggleStatus(ctx context.Context, id string) (*model.Coupon, error)

	GetUsage(ctx context.Context, id string) (*model.CouponUsage, error)
	GetUsageHistory(ctx context.Context, filter model.UsageFilter) ([]model.CouponUsage, error)
	GetStats(ctx context.Context) (*model.CouponStats, error)
	// ReconcileUsage 按使用记录重写每张券的 usedCount，返回修正的数量
	ReconcileUsage(ctx context.Context) (int, error)
}

type couponService struct {
	store    store.Store
	coupons  repository.CouponRepository
	ledger   repository.UsageLedger
	validate *validator.Validate
	log      *zap.Logger
	cache    cache.CacheService
	metrics  *metrics.MetricsCollector
	now      func() time.Time
	retries  int
}

// Option 可选依赖
type Option func(*couponService)

func WithCache(c cache.CacheService) Option {
	return func(s *couponService) { s.cache = c }
}

func WithMetrics(m *metrics.MetricsCollector) Option {
	return func(s *couponService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *couponService) { s.now = now }
}

func WithRetries(n int) Option {
	return func(s *couponService) { s.retries = n }
}

func NewCouponService(st store.Store, log *zap.Logger, opts ...Option) CouponService {
	s := &couponService{
		store:    st,
		coupons:  repository.NewCouponRepository(),
		ledger:   repository.NewUsageLedger(),
		validate: newInputValidator(),
		log:      log,
		now:      time.Now,
		retries:  store.DefaultRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *couponService) update(ctx context.Context, op string, fn func(store.Tx) error) error {
	err := store.UpdateWithRetry(ctx, s.store, s.retries, fn)
	if errors.Is(err, store.ErrConflict) {
		s.metrics.RecordConflict(op)
		s.log.Warn("store conflict persisted after retries", zap.String("op", op))
	}
	return err
}

func checkAmount(amount float64) error {
	if amount < 0 {
		return apperr.Invalid("amount", "must not be negative")
	}
	return nil
}

func (s *couponService) Validate(ctx context.Context, in model.ValidateInput) (*model.ValidationResult, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, err
	}
	in.Code = NormalizeCode(in.Code)

	var result model.ValidationResult
	err := s.store.View(ctx, func(tx store.Tx) error {
		coupon, err := s.coupons.FindByCode(tx, in.Code)
		if err != nil {
			return err
		}
		usages, err := s.ledger.List(tx)
		if err != nil {
			return err
		}
		result = ValidateCoupon(coupon, usages, in, s.now())
		return nil
	})
	if err != nil {
		s.metrics.RecordValidation("error")
		return nil, fmt.Errorf("validate coupon: %w", err)
	}
	s.recordOutcome(&result)
	return &result, nil
}

func (s *couponService) recordOutcome(r *model.ValidationResult) {
	if r.IsValid {
		s.metrics.RecordValidation("valid")
	} else {
		s.metrics.RecordValidation("invalid")
	}
}

func checkUsageAmounts(in model.RecordUsageInput) error {
	var errs apperr.ValidationErrors
	if in.CouponID == "" {
		errs = append(errs, apperr.Invalid("couponId", "is required"))
	}
	if in.UserID == "" {
		errs = append(errs, apperr.Invalid("userId", "is required"))
	}
	if in.DiscountAmount < 0 || in.OriginalAmount < 0 || in.FinalAmount < 0 {
		errs = append(errs, apperr.Invalid("amount", "amounts must not be negative"))
	}
	original := decimal.NewFromFloat(in.OriginalAmount)
	expected := original.Sub(decimal.NewFromFloat(in.DiscountAmount))
	if !expected.Equal(decimal.NewFromFloat(in.FinalAmount)) {
		errs = append(errs, apperr.Invalid("finalAmount", "must equal originalAmount minus discountAmount"))
	}
	return errs.OrNil()
}

// appendUsage 在事务内追加记录并以记录数刷新 usedCount
func (s *couponService) appendUsage(tx store.Tx, coupon *model.Coupon, usage *model.CouponUsage) error {
	if err := s.ledger.Append(tx, usage); err != nil {
		return err
	}
	count, err := s.ledger.CountByCoupon(tx, coupon.ID)
	if err != nil {
		return err
	}
	coupon.UsedCount = count
	coupon.Touch(usage.UsedAt)
	return s.coupons.Save(tx, coupon)
}

func (s *couponService) RecordUsage(ctx context.Context, in model.RecordUsageInput) (*model.CouponUsage, error) {
	if err := checkUsageAmounts(in); err != nil {
		return nil, err
	}

	var usage *model.CouponUsage
	err := s.update(ctx, "record_usage", func(tx store.Tx) error {
		coupon, err := s.coupons.GetByID(tx, in.CouponID)
		if err != nil {
			return err
		}
		if coupon.UsageLimit != nil {
			used, err := s.ledger.CountByCoupon(tx, coupon.ID)
			if err != nil {
				return err
			}
			if used >= *coupon.UsageLimit {
				return ErrUsageLimitReached
			}
		}
		if coupon.UserUsageLimit != nil {
			used, err := s.ledger.CountByCouponAndUser(tx, coupon.ID, in.UserID)
			if err != nil {
				return err
			}
			if used >= *coupon.UserUsageLimit {
				return fmt.Errorf("%w for user %s", ErrUsageLimitReached, in.UserID)
			}
		}

		usage = &model.CouponUsage{
			ID:             uuid.New().String(),
			CouponID:       coupon.ID,
			CouponCode:     coupon.Code,
			UserID:         in.UserID,
			UserEmail:      in.UserEmail,
			DiscountAmount: in.DiscountAmount,
			OriginalAmount: in.OriginalAmount,
			FinalAmount:    in.FinalAmount,
			PlanType:       in.PlanType,
			UsedAt:         s.now(),
			IPAddress:      in.IPAddress,
			UserAgent:      in.UserAgent,
		}
		return s.appendUsage(tx, coupon, usage)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUsage()
	s.invalidateStats(ctx)
	s.log.Info("coupon usage recorded",
		zap.String("coupon_id", usage.CouponID),
		zap.String("user_id", usage.UserID),
		zap.Float64("discount", usage.DiscountAmount),
	)
	return usage, nil
}

func (s *couponService) Redeem(ctx context.Context, in model.ValidateInput, client model.ClientInfo) (*model.ValidationResult, *model.CouponUsage, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, nil, err
	}
	in.Code = NormalizeCode(in.Code)

	var (
		result model.ValidationResult
		usage  *model.CouponUsage
	)
	err := s.update(ctx, "redeem", func(tx store.Tx) error {
		// 重试时 fn 会再次执行，先清空上一次的结果
		usage = nil

		coupon, err := s.coupons.FindByCode(tx, in.Code)
		if err != nil {
			return err
		}
		usages, err := s.ledger.List(tx)
		if err != nil {
			return err
		}
		now := s.now()
		result = ValidateCoupon(coupon, usages, in, now)
		if !result.IsValid {
			return nil
		}

		usage = &model.CouponUsage{
			ID:             uuid.New().String(),
			CouponID:       coupon.ID,
			CouponCode:     coupon.Code,
			UserID:         in.UserID,
			UserEmail:      client.UserEmail,
			DiscountAmount: result.DiscountAmount,
			OriginalAmount: in.Amount,
			FinalAmount:    result.FinalAmount,
			PlanType:       in.PlanType,
			UsedAt:         now,
			IPAddress:      client.IPAddress,
			UserAgent:      client.UserAgent,
		}
		return s.appendUsage(tx, coupon, usage)
	})
	if err != nil {
		s.metrics.RecordValidation("error")
		return nil, nil, fmt.Errorf("redeem coupon %s: %w", in.Code, err)
	}

	s.recordOutcome(&result)
	if usage != nil {
		s.metrics.RecordUsage()
		s.invalidateStats(ctx)
		s.log.Info("coupon redeemed",
			zap.String("code", usage.CouponCode),
			zap.String("user_id", usage.UserID),
			zap.Float64("discount", usage.DiscountAmount),
			zap.Float64("final", usage.FinalAmount),
		)
	}
	return &result, usage, nil
}

func (s *couponService) Create(ctx context.Context, in model.CreateCouponInput) (*model.Coupon, error) {
	in.Code = NormalizeCode(in.Code)
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationErrors(err)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	coupon := &model.Coupon{
		Code:           in.Code,
		Description:    in.Description,
		Type:           in.Type,
		Value:          in.Value,
		MinAmount:      in.MinAmount,
		MaxDiscount:    in.MaxDiscount,
		UsageLimit:     in.UsageLimit,
		UserUsageLimit: in.UserUsageLimit,
		IsActive:       isActive,
		ValidFrom:      in.ValidFrom,
		ValidUntil:     in.ValidUntil,
		EligibleRoles:  in.EligibleRoles,
		EligiblePlans:  in.EligiblePlans,
		CreatedBy:      in.CreatedBy,
		Metadata:       in.Metadata,
	}
	if err := checkCoupon(coupon); err != nil {
		return nil, err
	}

	err := s.update(ctx, "create_coupon", func(tx store.Tx) error {
		existing, err := s.coupons.FindByCode(tx, coupon.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrCodeTaken
		}
		coupon.ID = ""
		coupon.Init(s.now())
		return s.coupons.Save(tx, coupon)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.log.Info("coupon created", zap.String("id", coupon.ID), zap.String("code", coupon.Code), zap.String("created_by", coupon.CreatedBy))
	return coupon, nil
}

func (s *couponService) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	var coupon *model.Coupon
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		coupon, err = s.coupons.GetByID(tx, id)
		return err
	})
	return coupon, err
}

func (s *couponService) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	code = NormalizeCode(code)
	var coupon *model.Coupon
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		coupon, err = s.coupons.FindByCode(tx, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, apperr.NotFound("coupon", code)
	}
	return coupon, nil
}

func (s *couponService) List(ctx context.Context, p utils.Pagination) (utils.PageResult, error) {
	var coupons []model.Coupon
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		coupons, err = s.coupons.List(tx)
		return err
	})
	if err != nil {
		return utils.PageResult{}, err
	}
	sort.SliceStable(coupons, func(i, j int) bool {
		return coupons[i].CreatedAt.After(coupons[j].CreatedAt)
	})
	return utils.Paginate(coupons, p), nil
}

func applyPatch(c *model.Coupon, in model.UpdateCouponInput) {
	if in.Code != nil {
		c.Code = *in.Code
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.Value != nil {
		c.Value = *in.Value
	}
	if in.MinAmount != nil {
		c.MinAmount = in.MinAmount
	}
	if in.MaxDiscount != nil {
		c.MaxDiscount = in.MaxDiscount
	}
	if in.UsageLimit != nil {
		c.UsageLimit = in.UsageLimit
	}
	if in.UserUsageLimit != nil {
		c.UserUsageLimit = in.UserUsageLimit
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.ValidFrom != nil {
		c.ValidFrom = *in.ValidFrom
	}
	if in.ValidUntil != nil {
		c.ValidUntil = *in.ValidUntil
	}
	if in.EligibleRoles != nil {
		c.EligibleRoles = in.EligibleRoles
	}
	if in.EligiblePlans != nil {
		c.EligiblePlans = in.EligiblePlans
	}
	if in.Metadata != nil {
		c.Metadata = in.Metadata
	}
}

func (s *couponService) Update(ctx context.Context, id string, in model.UpdateCouponInput) (*model.Coupon, error) {
	if in.Code != nil {
		code := NormalizeCode(*in.Code)
		in.Code = &code
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationErrors(err)
	}

	var coupon *model.Coupon
	err := s.update(ctx, "update_coupon", func(tx store.Tx) error {
		var err error
		coupon, err = s.coupons.GetByID(tx, id)
		if err != nil {
			return err
		}
		if in.Code != nil && *in.Code != coupon.Code {
			existing, err := s.coupons.FindByCode(tx, *in.Code)
			if err != nil {
				return err
			}
			if existing != nil {
				return ErrCodeTaken
			}
		}

		applyPatch(coupon, in)
		if err := checkCoupon(coupon); err != nil {
			return err
		}
		coupon.Touch(s.now())
		return s.coupons.Save(tx, coupon)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.log.Info("coupon updated", zap.String("id", id))
	return coupon, nil
}

func (s *couponService) Delete(ctx context.Context, id string) error {
	err := s.update(ctx, "delete_coupon", func(tx store.Tx) error {
		return s.coupons.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.log.Info("coupon deleted", zap.String("id", id))
	return nil
}

func (s *couponService) ToggleStatus(ctx context.Context, id string) (*model.Coupon, error) {
	var coupon *model.Coupon
	err := s.update(ctx, "toggle_coupon", func(tx store.Tx) error {
		var err error
		coupon, err = s.coupons.GetByID(tx, id)
		if err != nil {
			return err
		}
		coupon.IsActive = !coupon.IsActive
		coupon.Touch(s.now())
		return s.coupons.Save(tx, coupon)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.log.Info("coupon status toggled", zap.String("id", id), zap.Bool("active", coupon.IsActive))
	return coupon, nil
}

func (s *couponService) GetUsage(ctx context.Context, id string) (*model.CouponUsage, error) {
	var usage *model.CouponUsage
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		usage, err = s.ledger.GetByID(tx, id)
		return err
	})
	return usage, err
}

func (s *couponService) GetUsageHistory(ctx context.Context, filter model.UsageFilter) ([]model.CouponUsage, error) {
	var usages []model.CouponUsage
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		usages, err = s.ledger.Find(tx, filter)
		return err
	})
	return usages, err
}

func (s *couponService) ReconcileUsage(ctx context.Context) (int, error) {
	corrected := 0
	err := s.update(ctx, "reconcile_usage", func(tx store.Tx) error {
		corrected = 0
		coupons, err := s.coupons.List(tx)
		if err != nil {
			return err
		}
		usages, err := s.ledger.List(tx)
		if err != nil {
			return err
		}
		now := s.now()
		for i := range coupons {
			count := repository.CountUsage(usages, coupons[i].ID, "")
			if coupons[i].UsedCount != count {
				coupons[i].UsedCount = count
				coupons[i].Touch(now)
				corrected++
			}
		}
		if corrected == 0 {
			return nil
		}
		return s.coupons.SaveAll(tx, coupons)
	})
	if err != nil {
		return 0, err
	}
	if corrected > 0 {
		s.invalidateStats(ctx)
		s.log.Warn("coupon usage counters reconciled", zap.Int("corrected", corrected))
	}
	return corrected, nil
}

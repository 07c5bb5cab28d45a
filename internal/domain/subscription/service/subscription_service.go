package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon_subscription/internal/domain/subscription/model"
	"coupon_subscription/internal/domain/subscription/repository"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/metrics"

	"go.uber.org/zap"
)

var (
	ErrNoActiveTrial     = errors.New("No active trial subscription found")
	ErrInvalidTransition = errors.New("invalid subscription status transition")
	ErrUnsupportedPlan   = errors.New("only upgrades to the pro plan are supported")
	ErrUsageApplied      = errors.New("coupon usage already applied to a subscription")
)

// SubscriptionService 订阅生命周期管理
type SubscriptionService interface {
	// Create 取消用户当前 active 订阅后创建新订阅，在同一事务内完成
	Create(ctx context.Context, in model.CreateInput) (*model.UserSubscription, error)
	// GetActive 返回当前有效订阅；已到期的 active 记录会被置为 expired 并返回 nil
	GetActive(ctx context.Context, userID string) (*model.UserSubscription, error)
	// EnsureActive 没有有效订阅时创建 free 订阅
	EnsureActive(ctx context.Context, userID string) (*model.UserSubscription, error)
	Upgrade(ctx context.Context, in model.CreateInput) (*model.UserSubscription, error)
	ExtendTrial(ctx context.Context, in model.ExtendTrialInput) (*model.UserSubscription, error)
	// FindByUsage 返回已记录该使用记录的订阅（任意状态），没有时返回 nil
	FindByUsage(ctx context.Context, userID, usageID string) (*model.UserSubscription, error)

	Cancel(ctx context.Context, id string) (*model.UserSubscription, error)
	Expire(ctx context.Context, id string) (*model.UserSubscription, error)
	CancelActive(ctx context.Context, userID string) (*model.UserSubscription, error)
	// Cleanup 把所有到期的 active 订阅置为 expired，返回处理数量
	Cleanup(ctx context.Context) (int, error)

	GetFeatures(ctx context.Context, userID string) (*model.FeatureSnapshot, error)
	HasAccess(ctx context.Context, userID, feature string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]model.UserSubscription, error)
	GetStats(ctx context.Context) (*model.SubscriptionStats, error)
}

type subscriptionService struct {
	store    store.Store
	repo     repository.SubscriptionRepository
	log      *zap.Logger
	metrics  *metrics.MetricsCollector
	now      func() time.Time
	retries  int
	proPrice float64
}

// Option 可选依赖
type Option func(*subscriptionService)

func WithMetrics(m *metrics.MetricsCollector) Option {
	return func(s *subscriptionService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *subscriptionService) { s.now = now }
}

func WithRetries(n int) Option {
	return func(s *subscriptionService) { s.retries = n }
}

// WithProPrice pro 计划月价，用于收入统计
func WithProPrice(price float64) Option {
	return func(s *subscriptionService) { s.proPrice = price }
}

func NewSubscriptionService(st store.Store, log *zap.Logger, opts ...Option) SubscriptionService {
	s := &subscriptionService{
		store:   st,
		repo:    repository.NewSubscriptionRepository(),
		log:     log,
		now:     time.Now,
		retries: store.DefaultRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// transition 一次状态迁移，提交成功后才上报
type transition struct {
	id   string
	user string
	plan model.PlanType
	to   model.Status
}

type txState struct {
	now         time.Time
	transitions []transition
}

func (t *txState) move(sub *model.UserSubscription, to model.Status) error {
	if !sub.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, to)
	}
	sub.Status = to
	sub.Touch(t.now)
	t.transitions = append(t.transitions, transition{id: sub.ID, user: sub.UserID, plan: sub.PlanType, to: to})
	return nil
}

// update 在重试事务内执行 fn，每次尝试都重置 txState
func (s *subscriptionService) update(ctx context.Context, op string, fn func(store.Tx, *txState) error) error {
	var state *txState
	err := store.UpdateWithRetry(ctx, s.store, s.retries, func(tx store.Tx) error {
		state = &txState{now: s.now()}
		return fn(tx, state)
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.metrics.RecordConflict(op)
			s.log.Warn("store conflict persisted after retries", zap.String("op", op))
		}
		return err
	}
	for _, t := range state.transitions {
		s.metrics.RecordTransition(string(t.plan), string(t.to))
		s.log.Info("subscription transition",
			zap.String("op", op),
			zap.String("subscription_id", t.id),
			zap.String("user_id", t.user),
			zap.String("plan", string(t.plan)),
			zap.String("to", string(t.to)),
		)
	}
	return nil
}

func checkCreate(in model.CreateInput) error {
	var errs apperr.ValidationErrors
	if in.UserID == "" {
		errs = append(errs, apperr.Invalid("userId", "is required"))
	}
	if !in.PlanType.Valid() {
		errs = append(errs, apperr.Invalid("planType", "must be one of free, trial, pro"))
	}
	if in.DiscountApplied != nil && *in.DiscountApplied < 0 {
		errs = append(errs, apperr.Invalid("discountApplied", "must not be negative"))
	}
	return errs.OrNil()
}

// claimUsage 事务内检查使用记录未生效过，保证一条使用记录只变更一次订阅
func (s *subscriptionService) claimUsage(tx store.Tx, userID, usageID string) error {
	if usageID == "" {
		return nil
	}
	applied, err := s.repo.FindByUsage(tx, userID, usageID)
	if err != nil {
		return err
	}
	if applied != nil {
		return fmt.Errorf("%w: usage %s on subscription %s", ErrUsageApplied, usageID, applied.ID)
	}
	return nil
}

// create 事务内：取消该用户所有 active 记录，再插入新的 active 记录
func (s *subscriptionService) create(tx store.Tx, st *txState, in model.CreateInput) (*model.UserSubscription, error) {
	if err := s.claimUsage(tx, in.UserID, in.UsageID); err != nil {
		return nil, err
	}
	subs, err := s.repo.List(tx)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].UserID == in.UserID && subs[i].Status == model.StatusActive {
			if err := st.move(&subs[i], model.StatusCancelled); err != nil {
				return nil, err
			}
		}
	}

	sub := &model.UserSubscription{
		UserID:          in.UserID,
		PlanType:        in.PlanType,
		Status:          model.StatusActive,
		CouponUsed:      in.CouponCode,
		DiscountApplied: in.DiscountApplied,
	}
	if in.UsageID != "" {
		sub.AppliedUsages = []string{in.UsageID}
	}
	sub.Init(st.now)
	sub.ApplyPlanDates(st.now)
	st.transitions = append(st.transitions, transition{id: sub.ID, user: sub.UserID, plan: sub.PlanType, to: model.StatusActive})

	if err := s.repo.SaveAll(tx, append(subs, *sub)); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) Create(ctx context.Context, in model.CreateInput) (*model.UserSubscription, error) {
	if err := checkCreate(in); err != nil {
		return nil, err
	}
	var sub *model.UserSubscription
	err := s.update(ctx, "create", func(tx store.Tx, st *txState) error {
		var err error
		sub, err = s.create(tx, st, in)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) Upgrade(ctx context.Context, in model.CreateInput) (*model.UserSubscription, error) {
	if in.PlanType != model.PlanPro {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlan, in.PlanType)
	}
	return s.Create(ctx, in)
}

// expireOverdue 事务内把满足 match 的到期 active 记录置为 expired
func (s *subscriptionService) expireOverdue(tx store.Tx, st *txState, match func(*model.UserSubscription) bool) (int, error) {
	subs, err := s.repo.List(tx)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range subs {
		sub := &subs[i]
		if sub.Status != model.StatusActive || !sub.IsOverdue(st.now) || !match(sub) {
			continue
		}
		if err := st.move(sub, model.StatusExpired); err != nil {
			return 0, err
		}
		expired++
	}
	if expired == 0 {
		return 0, nil
	}
	return expired, s.repo.SaveAll(tx, subs)
}

func (s *subscriptionService) GetActive(ctx context.Context, userID string) (*model.UserSubscription, error) {
	var active *model.UserSubscription
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		active, err = s.repo.FindActive(tx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	if active == nil || !active.IsOverdue(s.now()) {
		return active, nil
	}

	err = s.update(ctx, "lazy_expire", func(tx store.Tx, st *txState) error {
		_, err := s.expireOverdue(tx, st, func(sub *model.UserSubscription) bool {
			return sub.UserID == userID
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("expire subscription: %w", err)
	}
	return nil, nil
}

func (s *subscriptionService) EnsureActive(ctx context.Context, userID string) (*model.UserSubscription, error) {
	if userID == "" {
		return nil, apperr.Invalid("userId", "is required")
	}
	active, err := s.GetActive(ctx, userID)
	if err != nil || active != nil {
		return active, err
	}

	var sub *model.UserSubscription
	err = s.update(ctx, "ensure_active", func(tx store.Tx, st *txState) error {
		current, err := s.repo.FindActive(tx, userID)
		if err != nil {
			return err
		}
		if current != nil && current.IsCurrent(st.now) {
			sub = current
			return nil
		}
		sub, err = s.create(tx, st, model.CreateInput{UserID: userID, PlanType: model.PlanFree})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) ExtendTrial(ctx context.Context, in model.ExtendTrialInput) (*model.UserSubscription, error) {
	if in.Days < 1 {
		return nil, apperr.Invalid("days", "must be at least 1")
	}

	var sub *model.UserSubscription
	err := s.update(ctx, "extend_trial", func(tx store.Tx, st *txState) error {
		if err := s.claimUsage(tx, in.UserID, in.UsageID); err != nil {
			return err
		}
		active, err := s.repo.FindActive(tx, in.UserID)
		if err != nil {
			return err
		}
		if active == nil || active.PlanType != model.PlanTrial || !active.IsCurrent(st.now) {
			return ErrNoActiveTrial
		}

		base := st.now
		if active.TrialEndDate != nil {
			base = *active.TrialEndDate
		} else if active.EndDate != nil {
			base = *active.EndDate
		}
		end := base.AddDate(0, 0, in.Days)
		active.TrialEndDate = &end
		active.EndDate = &end
		if in.UsageID != "" {
			active.AppliedUsages = append(active.AppliedUsages, in.UsageID)
		}
		active.Touch(st.now)
		sub = active
		return s.repo.Save(tx, active)
	})
	if err != nil {
		return nil, fmt.Errorf("extend trial: %w", err)
	}
	s.log.Info("trial extended", zap.String("user_id", in.UserID), zap.Int("days", in.Days), zap.Time("end", *sub.EndDate))
	return sub, nil
}

func (s *subscriptionService) FindByUsage(ctx context.Context, userID, usageID string) (*model.UserSubscription, error) {
	var sub *model.UserSubscription
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		sub, err = s.repo.FindByUsage(tx, userID, usageID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find subscription by usage: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) moveByID(ctx context.Context, op, id string, to model.Status) (*model.UserSubscription, error) {
	var sub *model.UserSubscription
	err := s.update(ctx, op, func(tx store.Tx, st *txState) error {
		var err error
		if sub, err = s.repo.GetByID(tx, id); err != nil {
			return err
		}
		if err := st.move(sub, to); err != nil {
			return err
		}
		return s.repo.Save(tx, sub)
	})
	if err != nil {
		return nil, fmt.Errorf("%s subscription: %w", op, err)
	}
	return sub, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, id string) (*model.UserSubscription, error) {
	return s.moveByID(ctx, "cancel", id, model.StatusCancelled)
}

func (s *subscriptionService) Expire(ctx context.Context, id string) (*model.UserSubscription, error) {
	return s.moveByID(ctx, "expire", id, model.StatusExpired)
}

func (s *subscriptionService) CancelActive(ctx context.Context, userID string) (*model.UserSubscription, error) {
	var sub *model.UserSubscription
	err := s.update(ctx, "cancel", func(tx store.Tx, st *txState) error {
		var err error
		if sub, err = s.repo.FindActive(tx, userID); err != nil {
			return err
		}
		if sub == nil {
			return apperr.NotFound("active subscription for user", userID)
		}
		if err := st.move(sub, model.StatusCancelled); err != nil {
			return err
		}
		return s.repo.Save(tx, sub)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) Cleanup(ctx context.Context) (int, error) {
	var expired int
	err := s.update(ctx, "cleanup", func(tx store.Tx, st *txState) error {
		var err error
		expired, err = s.expireOverdue(tx, st, func(*model.UserSubscription) bool { return true })
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup subscriptions: %w", err)
	}
	s.log.Info("subscription cleanup finished", zap.Int("expired", expired))
	return expired, nil
}

func (s *subscriptionService) GetFeatures(ctx context.Context, userID string) (*model.FeatureSnapshot, error) {
	active, err := s.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan := model.PlanFree
	if active != nil {
		plan = active.PlanType
	}
	return &model.FeatureSnapshot{
		PlanType:     plan,
		Features:     model.FeaturesFor(plan),
		Subscription: active,
	}, nil
}

func (s *subscriptionService) HasAccess(ctx context.Context, userID, feature string) (bool, error) {
	snapshot, err := s.GetFeatures(ctx, userID)
	if err != nil {
		return false, err
	}
	return snapshot.Features.Allows(feature), nil
}

func (s *subscriptionService) ListByUser(ctx context.Context, userID string) ([]model.UserSubscription, error) {
	var subs []model.UserSubscription
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		subs, err = s.repo.FindByUser(tx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

package model

import (
	"time"

	baseModel "coupon_subscription/pkg/model"
)

// PlanType 订阅计划
type PlanType string

const (
	PlanFree  PlanType = "free"
	PlanTrial PlanType = "trial"
	PlanPro   PlanType = "pro"
)

// Valid 是否为已知计划
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanTrial, PlanPro:
		return true
	}
	return false
}

// Status 订阅状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"   // 终态
	StatusCancelled Status = "cancelled" // 终态
)

// 允许的状态迁移
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusCancelled, StatusExpired},
}

// CanTransitionTo 检查状态迁移是否合法
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	TrialDuration = 7 * 24 * time.Hour
	proMonths     = 1
)

// UserSubscription 用户订阅记录，同一用户任意时刻最多一条 active
type UserSubscription struct {
	baseModel.BaseModel
	UserID          string     `json:"userId"`
	PlanType        PlanType   `json:"planType"`
	Status          Status     `json:"status"`
	StartDate       time.Time  `json:"startDate"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	TrialEndDate    *time.Time `json:"trialEndDate,omitempty"`
	NextBillingDate *time.Time `json:"nextBillingDate,omitempty"`
	LastPaymentDate *time.Time `json:"lastPaymentDate,omitempty"`
	PaymentMethod   string     `json:"paymentMethod,omitempty"`
	CouponUsed      string     `json:"couponUsed,omitempty"`
	DiscountApplied *float64   `json:"discountApplied,omitempty"`
	// AppliedUsages 作用于该记录的优惠券使用记录 id，每条使用记录只能生效一次
	AppliedUsages   []string   `json:"appliedUsages,omitempty"`
}

// IsOverdue endDate 已到（含等于）
func (s *UserSubscription) IsOverdue(now time.Time) bool {
	return s.EndDate != nil && !s.EndDate.After(now)
}

// IsCurrent active 且未过期
func (s *UserSubscription) IsCurrent(now time.Time) bool {
	return s.Status == StatusActive && !s.IsOverdue(now)
}

// HasApplied 该使用记录是否已作用于此订阅
func (s *UserSubscription) HasApplied(usageID string) bool {
	for _, id := range s.AppliedUsages {
		if id == usageID {
			return true
		}
	}
	return false
}

// ApplyPlanDates 按计划设置结束时间：trial 7 天，pro 一个月，free 不过期
func (s *UserSubscription) ApplyPlanDates(start time.Time) {
	s.StartDate = start
	switch s.PlanType {
	case PlanTrial:
		end := start.Add(TrialDuration)
		s.EndDate = &end
		s.TrialEndDate = &end
	case PlanPro:
		end := start.AddDate(0, proMonths, 0)
		s.EndDate = &end
		s.NextBillingDate = &end
	}
}

// CreateInput 创建订阅
type CreateInput struct {
	UserID          string
	PlanType        PlanType
	CouponCode      string
	DiscountApplied *float64
	// UsageID 触发本次变更的优惠券使用记录，为空表示非兑换来源
	UsageID         string
}

// ExtendTrialInput 延长试用
type ExtendTrialInput struct {
	UserID  string
	Days    int
	UsageID string
}

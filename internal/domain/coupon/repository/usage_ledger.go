package repository

import (
	"sort"

	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
)

// UsageLedger 只追加的使用记录，按用户限额以它为准
type UsageLedger interface {
	List(tx store.Tx) ([]model.CouponUsage, error)
	GetByID(tx store.Tx, id string) (*model.CouponUsage, error)
	Append(tx store.Tx, usage *model.CouponUsage) error
	CountByCoupon(tx store.Tx, couponID string) (int, error)
	CountByCouponAndUser(tx store.Tx, couponID, userID string) (int, error)
	// Find 按过滤条件返回记录，最新的在前
	Find(tx store.Tx, filter model.UsageFilter) ([]model.CouponUsage, error)
}

type usageLedger struct{}

func NewUsageLedger() UsageLedger {
	return &usageLedger{}
}

func (l *usageLedger) List(tx store.Tx) ([]model.CouponUsage, error) {
	return store.Collection[model.CouponUsage](tx, store.CollectionCouponUsage)
}

func (l *usageLedger) GetByID(tx store.Tx, id string) (*model.CouponUsage, error) {
	usages, err := l.List(tx)
	if err != nil {
		return nil, err
	}
	for i := range usages {
		if usages[i].ID == id {
			return &usages[i], nil
		}
	}
	return nil, apperr.NotFound("coupon usage", id)
}

func (l *usageLedger) Append(tx store.Tx, usage *model.CouponUsage) error {
	usages, err := l.List(tx)
	if err != nil {
		return err
	}
	return tx.Put(store.CollectionCouponUsage, append(usages, *usage))
}

func (l *usageLedger) CountByCoupon(tx store.Tx, couponID string) (int, error) {
	usages, err := l.List(tx)
	if err != nil {
		return 0, err
	}
	return CountUsage(usages, couponID, ""), nil
}

func (l *usageLedger) CountByCouponAndUser(tx store.Tx, couponID, userID string) (int, error) {
	usages, err := l.List(tx)
	if err != nil {
		return 0, err
	}
	return CountUsage(usages, couponID, userID), nil
}

func (l *usageLedger) Find(tx store.Tx, filter model.UsageFilter) ([]model.CouponUsage, error) {
	usages, err := l.List(tx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CouponUsage, 0, len(usages))
	for _, u := range usages {
		if filter.CouponID != "" && u.CouponID != filter.CouponID {
			continue
		}
		if filter.UserID != "" && u.UserID != filter.UserID {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UsedAt.After(out[j].UsedAt)
	})
	return out, nil
}

// CountUsage 统计某券的使用次数，userID 为空时统计全部用户
func CountUsage(usages []model.CouponUsage, couponID, userID string) int {
	n := 0
	for _, u := range usages {
		if u.CouponID == couponID && (userID == "" || u.UserID == userID) {
			n++
		}
	}
	return n
}

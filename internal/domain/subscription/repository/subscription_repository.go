package repository

import (
	"sort"

	"coupon_subscription/internal/domain/subscription/model"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
)

// SubscriptionRepository 订阅集合的读写，在调用方事务内执行
type SubscriptionRepository interface {
	List(tx store.Tx) ([]model.UserSubscription, error)
	GetByID(tx store.Tx, id string) (*model.UserSubscription, error)
	// FindActive 用户最新的 active 记录（不判断是否过期），没有时返回 nil, nil
	FindActive(tx store.Tx, userID string) (*model.UserSubscription, error)
	// FindByUser 用户的全部订阅，最新的在前
	FindByUser(tx store.Tx, userID string) ([]model.UserSubscription, error)
	// FindByUsage 用户名下记录了该使用记录的订阅，不限状态，没有时返回 nil, nil
	FindByUsage(tx store.Tx, userID, usageID string) (*model.UserSubscription, error)
	Save(tx store.Tx, sub *model.UserSubscription) error
	SaveAll(tx store.Tx, subs []model.UserSubscription) error
}

type subscriptionRepository struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{}
}

func (r *subscriptionRepository) List(tx store.Tx) ([]model.UserSubscription, error) {
	return store.Collection[model.UserSubscription](tx, store.CollectionSubscriptions)
}

func (r *subscriptionRepository) GetByID(tx store.Tx, id string) (*model.UserSubscription, error) {
	subs, err := r.List(tx)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].ID == id {
			return &subs[i], nil
		}
	}
	return nil, apperr.NotFound("subscription", id)
}

func (r *subscriptionRepository) FindActive(tx store.Tx, userID string) (*model.UserSubscription, error) {
	subs, err := r.FindByUser(tx, userID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Status == model.StatusActive {
			return &subs[i], nil
		}
	}
	return nil, nil
}

func (r *subscriptionRepository) FindByUser(tx store.Tx, userID string) ([]model.UserSubscription, error) {
	subs, err := r.List(tx)
	if err != nil {
		return nil, err
	}
	// 倒序收集，创建时间相同时后写入的排在前面
	out := make([]model.UserSubscription, 0)
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].UserID == userID {
			out = append(out, subs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *subscriptionRepository) FindByUsage(tx store.Tx, userID, usageID string) (*model.UserSubscription, error) {
	subs, err := r.FindByUser(tx, userID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].HasApplied(usageID) {
			return &subs[i], nil
		}
	}
	return nil, nil
}

func (r *subscriptionRepository) Save(tx store.Tx, sub *model.UserSubscription) error {
	subs, err := r.List(tx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range subs {
		if subs[i].ID == sub.ID {
			subs[i] = *sub
			replaced = true
			break
		}
	}
	if !replaced {
		subs = append(subs, *sub)
	}
	return r.SaveAll(tx, subs)
}

func (r *subscriptionRepository) SaveAll(tx store.Tx, subs []model.UserSubscription) error {
	if subs == nil {
		subs = []model.UserSubscription{}
	}
	return tx.Put(store.CollectionSubscriptions, subs)
}

package repository

import (
	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
)

// CouponRepository 优惠券集合的读写，所有方法都在调用方的事务内执行
type CouponRepository interface {
	List(tx store.Tx) ([]model.Coupon, error)
	GetByID(tx store.Tx, id string) (*model.Coupon, error)
	// FindByCode 精确匹配，不存在时返回 nil, nil
	FindByCode(tx store.Tx, code string) (*model.Coupon, error)
	// Save 按 ID 插入或替换
	Save(tx store.Tx, coupon *model.Coupon) error
	SaveAll(tx store.Tx, coupons []model.Coupon) error
	Delete(tx store.Tx, id string) error
}

type couponRepository struct{}

func NewCouponRepository() CouponRepository {
	return &couponRepository{}
}

func (r *couponRepository) List(tx store.Tx) ([]model.Coupon, error) {
	return store.Collection[model.Coupon](tx, store.CollectionCoupons)
}

func (r *couponRepository) GetByID(tx store.Tx, id string) (*model.Coupon, error) {
	coupons, err := r.List(tx)
	if err != nil {
		return nil, err
	}
	for i := range coupons {
		if coupons[i].ID == id {
			return &coupons[i], nil
		}
	}
	return nil, apperr.NotFound("coupon", id)
}

func (r *couponRepository) FindByCode(tx store.Tx, code string) (*model.Coupon, error) {
	coupons, err := r.List(tx)
	if err != nil {
		return nil, err
	}
	for i := range coupons {
		if coupons[i].Code == code {
			return &coupons[i], nil
		}
	}
	return nil, nil
}

func (r *couponRepository) Save(tx store.Tx, coupon *model.Coupon) error {
	coupons, err := r.List(tx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range coupons {
		if coupons[i].ID == coupon.ID {
			coupons[i] = *coupon
			replaced = true
			break
		}
	}
	if !replaced {
		coupons = append(coupons, *coupon)
	}
	return r.SaveAll(tx, coupons)
}

func (r *couponRepository) SaveAll(tx store.Tx, coupons []model.Coupon) error {
	if coupons == nil {
		coupons = []model.Coupon{}
	}
	return tx.Put(store.CollectionCoupons, coupons)
}

func (r *couponRepository) Delete(tx store.Tx, id string) error {
	coupons, err := r.List(tx)
	if err != nil {
		return err
	}
	for i := range coupons {
		if coupons[i].ID == id {
			return r.SaveAll(tx, append(coupons[:i], coupons[i+1:]...))
		}
	}
	return apperr.NotFound("coupon", id)
}

package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/cache"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetStats 统计结果短时间缓存，任何写操作都会使其失效
func (s *couponService) GetStats(ctx context.Context) (*model.CouponStats, error) {
	if s.cache != nil {
		var cached model.CouponStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheLookup("coupon_stats", true)
			return &cached, nil
		}
		s.metrics.RecordCacheLookup("coupon_stats", false)
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("read coupon stats cache failed", zap.Error(err))
		}
	}

	var (
		coupons []model.Coupon
		usages  []model.CouponUsage
	)
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if coupons, err = s.coupons.List(tx); err != nil {
			return err
		}
		usages, err = s.ledger.List(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	stats := buildStats(coupons, usages, s.now())
	// 读库与写缓存之间若有并发写入，其失效可能先于这里的 Set，旧快照最多保留 statsCacheTTL
	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, statsCacheTTL); err != nil {
			s.log.Warn("write coupon stats cache failed", zap.Error(err))
		}
	}
	return stats, nil
}

func buildStats(coupons []model.Coupon, usages []model.CouponUsage, now time.Time) *model.CouponStats {
	stats := &model.CouponStats{
		TotalCoupons: len(coupons),
		TotalUsage:   len(usages),
		TopCoupons:   []model.CouponUsageSum{},
		UsageByMonth: make(map[string]int),
	}

	for i := range coupons {
		switch {
		case coupons[i].IsExpired(now):
			stats.ExpiredCoupons++
		case coupons[i].IsActive:
			stats.ActiveCoupons++
		default:
			stats.InactiveCoupons++
		}
	}

	savings := decimal.Zero
	perCoupon := make(map[string]*model.CouponUsageSum)
	perCouponDiscount := make(map[string]decimal.Decimal)
	for _, u := range usages {
		d := decimal.NewFromFloat(u.DiscountAmount)
		savings = savings.Add(d)
		stats.UsageByMonth[u.UsedAt.UTC().Format("2006-01")]++

		sum, ok := perCoupon[u.CouponID]
		if !ok {
			sum = &model.CouponUsageSum{CouponID: u.CouponID, Code: u.CouponCode}
			perCoupon[u.CouponID] = sum
		}
		sum.UsageCount++
		perCouponDiscount[u.CouponID] = perCouponDiscount[u.CouponID].Add(d)
	}

	stats.TotalSavings = savings.InexactFloat64()
	if len(usages) > 0 {
		stats.AverageDiscount = savings.Div(decimal.NewFromInt(int64(len(usages)))).InexactFloat64()
	}

	for id, sum := range perCoupon {
		sum.TotalDiscount = perCouponDiscount[id].InexactFloat64()
		stats.TopCoupons = append(stats.TopCoupons, *sum)
	}
	sort.Slice(stats.TopCoupons, func(i, j int) bool {
		a, b := stats.TopCoupons[i], stats.TopCoupons[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.Code < b.Code
	})
	if len(stats.TopCoupons) > topCouponsN {
		stats.TopCoupons = stats.TopCoupons[:topCouponsN]
	}
	return stats
}

func (s *couponService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.log.Warn("invalidate coupon stats cache failed", zap.Error(err))
	}
}

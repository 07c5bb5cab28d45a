package model

// CouponStats 优惠券统计
type CouponStats struct {
	TotalCoupons    int              `json:"totalCoupons"`
	ActiveCoupons   int              `json:"activeCoupons"`
	ExpiredCoupons  int              `json:"expiredCoupons"`
	InactiveCoupons int              `json:"inactiveCoupons"`
	TotalUsage      int              `json:"totalUsage"`
	TotalSavings    float64          `json:"totalSavings"`
	AverageDiscount float64          `json:"averageDiscount"`
	TopCoupons      []CouponUsageSum `json:"topCoupons"`
	UsageByMonth    map[string]int   `json:"usageByMonth"` // YYYY-MM
}

// CouponUsageSum 单个优惠券的使用汇总
type CouponUsageSum struct {
	CouponID      string  `json:"couponId"`
	Code          string  `json:"code"`
	UsageCount    int     `json:"usageCount"`
	TotalDiscount float64 `json:"totalDiscount"`
}

package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 认证错误 100xx
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 优惠券模块错误 200xx
	ErrCouponNotFound     = 20001
	ErrCouponCodeTaken    = 20002
	ErrCouponUsageLimit   = 20003
	ErrCouponNotEligible  = 20004
	ErrRedemptionNotFound = 20005

	// 订阅模块错误 300xx
	ErrSubscriptionNotFound = 30001
	ErrNoActiveTrial        = 30002
	ErrInvalidTransition    = 30003
	ErrSubscriptionPending  = 30004
	ErrUnsupportedPlan      = 30005

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
	ErrConflict        = 50004
)

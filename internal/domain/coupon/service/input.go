package service

import (
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"coupon_subscription/internal/domain/coupon/model"
	"coupon_subscription/pkg/apperr"

	"github.com/go-playground/validator/v10"
)

var (
	codePattern   = regexp.MustCompile(`^[A-Z0-9_-]{3,50}$`)
	reservedCodes = []string{"ADMIN", "ROOT", "SYSTEM", "NULL", "UNDEFINED", "TEST", "DEFAULT"}
)

// 各类型 value 的取值范围
var valueBounds = map[model.CouponType][2]float64{
	model.TypePercentage:     {1, 100},
	model.TypeFixed:          {0.01, 1_000_000},
	model.TypeTrialExtension: {1, 365},
	model.TypeUpgradePromo:   {0, 100},
}

// NormalizeCode 券码统一为大写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return codePattern.MatchString(code) && !slices.Contains(reservedCodes, code)
	})
	return v
}

// toValidationErrors 把 validator 的错误转换为 apperr.ValidationErrors
func toValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(apperr.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperr.Invalid(fe.Field(), "%s", describe(fe)))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "couponcode":
		return "must be 3-50 characters of A-Z, 0-9, '-' or '_' and not a reserved word"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func checkValue(t model.CouponType, value float64) *apperr.ValidationError {
	bounds, ok := valueBounds[t]
	if !ok {
		return apperr.Invalid("type", "unknown coupon type %q", t)
	}
	if value < bounds[0] || value > bounds[1] {
		return apperr.Invalid("value", "must be between %v and %v for %s coupons", bounds[0], bounds[1], t)
	}
	if t == model.TypeTrialExtension && value != float64(int(value)) {
		return apperr.Invalid("value", "must be a whole number of days")
	}
	return nil
}

// checkCoupon 跨字段规则，Create 和 Update 合并后的结果都要满足
func checkCoupon(c *model.Coupon) error {
	var errs apperr.ValidationErrors
	if e := checkValue(c.Type, c.Value); e != nil {
		errs = append(errs, e)
	}
	if c.ValidFrom.After(c.ValidUntil) {
		errs = append(errs, apperr.Invalid("validUntil", "must not be before validFrom"))
	}
	if c.UsageLimit != nil && c.UserUsageLimit != nil && *c.UserUsageLimit > *c.UsageLimit {
		errs = append(errs, apperr.Invalid("userUsageLimit", "must not exceed usageLimit"))
	}
	if c.UsageLimit != nil && *c.UsageLimit < c.UsedCount {
		errs = append(errs, apperr.Invalid("usageLimit", "must not be below the current usage count %d", c.UsedCount))
	}
	return errs.OrNil()
}

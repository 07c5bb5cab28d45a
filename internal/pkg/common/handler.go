package common

import (
	"context"
	"errors"
	"net/http"

	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
	"coupon_subscription/pkg/response"
	"coupon_subscription/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorRule 领域错误到 HTTP 状态码与业务码的映射
type ErrorRule struct {
	Target error
	Status int
	Code   int
}

// RespondError 先匹配调用方给出的规则，再按通用错误分类响应。
// 未识别的错误视为基础设施故障，记录日志并返回 500。
func RespondError(c *gin.Context, log *zap.Logger, err error, rules ...ErrorRule) {
	for _, r := range rules {
		if errors.Is(err, r.Target) {
			response.Error(c, r.Status, r.Code, err.Error())
			return
		}
	}

	var one *apperr.ValidationError
	var many apperr.ValidationErrors
	switch {
	case errors.As(err, &many):
		response.ErrorWithData(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error(), many)
	case errors.As(err, &one):
		response.ErrorWithData(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error(), apperr.ValidationErrors{one})
	case errors.Is(err, apperr.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeError, err.Error())
	case errors.Is(err, store.ErrConflict):
		response.Error(c, http.StatusConflict, response.ErrConflict, "Concurrent modification, please retry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "Request cancelled")
	default:
		log.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
		)
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}

// BindPagination 读取 limit/offset 查询参数
func BindPagination(c *gin.Context) (utils.Pagination, bool) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return p, false
	}
	p.Normalize()
	return p, true
}

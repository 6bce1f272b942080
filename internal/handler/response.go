// Package handler 提供 HTTP 请求处理
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/windfall-labs/windfall-raffle/internal/dto"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/internal/service"
	"github.com/windfall-labs/windfall-raffle/pkg/lock"
)

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithPagination 返回分页成功响应
func SuccessWithPagination(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewPagedResponse(items, total, page, pageSize))
}

// Error 返回业务错误响应
func Error(c *gin.Context, err *dto.BizError) {
	c.JSON(err.HTTPStatus, dto.NewErrorResponse(err))
}

// GetWallet 从 context 获取钱包地址
func GetWallet(c *gin.Context) string {
	wallet, _ := c.Get("wallet")
	if w, ok := wallet.(string); ok {
		return w
	}
	return ""
}

// handleServiceError 将服务层错误映射为业务错误响应
func handleServiceError(c *gin.Context, err error) {
	var bizErr *dto.BizError
	if errors.As(err, &bizErr) {
		Error(c, bizErr)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
	case errors.Is(err, service.ErrUnauthorized):
		Error(c, dto.ErrForbidden)
	case errors.Is(err, service.ErrWrongStatus):
		Error(c, dto.ErrWrongRaffleStatus)
	case errors.Is(err, service.ErrNotExpired):
		Error(c, dto.ErrRaffleNotExpired)
	case errors.Is(err, service.ErrAlreadyExpired):
		Error(c, dto.ErrRaffleExpired)
	case errors.Is(err, service.ErrCapacityExceeded):
		Error(c, dto.ErrCapacityExceeded)
	case errors.Is(err, service.ErrPaymentMismatch):
		Error(c, dto.ErrPaymentMismatch)
	case errors.Is(err, service.ErrOracleUnavailable):
		Error(c, dto.ErrOracleUnavailable)
	case errors.Is(err, service.ErrTransferFailed):
		Error(c, dto.ErrTransferFailed)
	case errors.Is(err, repository.ErrRaffleNotFound):
		Error(c, dto.ErrRaffleNotFound)
	case errors.Is(err, repository.ErrRequestNotFound):
		Error(c, dto.ErrDrawNotFound)
	case errors.Is(err, repository.ErrClaimNotFound):
		Error(c, dto.ErrClaimNotFound)
	case errors.Is(err, repository.ErrClaimAlreadyClaimed):
		Error(c, dto.ErrRefundClaimed)
	case errors.Is(err, lock.ErrRaffleBusy):
		Error(c, dto.ErrRaffleBusy)
	default:
		Error(c, dto.ErrInternalError)
	}
}

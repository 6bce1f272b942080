// Package dto 提供数据传输对象定义
package dto

import "net/http"

// BizError 业务错误
type BizError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

// Error 实现 error 接口
func (e *BizError) Error() string {
	return e.Message
}

// 通用错误 (10xxx)
var (
	ErrInvalidParams     = &BizError{10001, "INVALID_PARAMS", http.StatusBadRequest}
	ErrUnauthorized      = &BizError{10002, "UNAUTHORIZED", http.StatusUnauthorized}
	ErrForbidden         = &BizError{10003, "FORBIDDEN", http.StatusForbidden}
	ErrInvalidWalletAddr = &BizError{10004, "INVALID_WALLET_ADDRESS", http.StatusBadRequest}
	ErrMissingAuthHeader = &BizError{10005, "MISSING_AUTH_HEADER", http.StatusUnauthorized}
)

// 抽奖错误 (11xxx)
var (
	ErrRaffleNotFound    = &BizError{11001, "RAFFLE_NOT_FOUND", http.StatusNotFound}
	ErrWrongRaffleStatus = &BizError{11002, "WRONG_RAFFLE_STATUS", http.StatusConflict}
	ErrRaffleNotExpired  = &BizError{11003, "RAFFLE_NOT_EXPIRED", http.StatusBadRequest}
	ErrRaffleExpired     = &BizError{11004, "RAFFLE_EXPIRED", http.StatusBadRequest}
	ErrRaffleBusy        = &BizError{11005, "RAFFLE_BUSY", http.StatusConflict}
	ErrDrawNotFound      = &BizError{11006, "DRAW_NOT_FOUND", http.StatusNotFound}
)

// 票务错误 (12xxx)
var (
	ErrCapacityExceeded = &BizError{12001, "CAPACITY_EXCEEDED", http.StatusBadRequest}
	ErrPaymentMismatch  = &BizError{12002, "PAYMENT_MISMATCH", http.StatusBadRequest}
	ErrClaimNotFound    = &BizError{12003, "CLAIM_NOT_FOUND", http.StatusNotFound}
	ErrRefundClaimed    = &BizError{12004, "REFUND_ALREADY_CLAIMED", http.StatusConflict}
)

// 系统错误 (20xxx)
var (
	ErrInternalError      = &BizError{20001, "INTERNAL_ERROR", http.StatusInternalServerError}
	ErrOracleUnavailable  = &BizError{20002, "ORACLE_UNAVAILABLE", http.StatusServiceUnavailable}
	ErrTransferFailed     = &BizError{20003, "TRANSFER_FAILED", http.StatusBadGateway}
	ErrServiceUnavailable = &BizError{20004, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable}
)

// NewBizError 创建自定义业务错误
func NewBizError(code int, message string, httpStatus int) *BizError {
	return &BizError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// WithMessage 返回带自定义消息的错误副本
func (e *BizError) WithMessage(msg string) *BizError {
	return &BizError{
		Code:       e.Code,
		Message:    msg,
		HTTPStatus: e.HTTPStatus,
	}
}

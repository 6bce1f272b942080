// Package service 实现抽奖生命周期、票务账本、随机数协调与结算
package service

import "errors"

// 抽奖业务错误
// 所有变更操作把错误返回给调用方；唯一被静默吞掉的情况是
// 回调命中已结束抽奖时的幂等空操作。
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrWrongStatus       = errors.New("operation not allowed in current raffle status")
	ErrNotExpired        = errors.New("raffle has not expired yet")
	ErrAlreadyExpired    = errors.New("raffle has already expired")
	ErrCapacityExceeded  = errors.New("entries would exceed max entries")
	ErrPaymentMismatch   = errors.New("paid amount does not match required amount")
	ErrUnauthorized      = errors.New("caller lacks required role or identity")
	ErrOracleUnavailable = errors.New("randomness request could not be issued")
	ErrUnknownRequest    = errors.New("randomness request id not recognized")
	ErrWinnerNotFound    = errors.New("no valid winner candidate in ledger")
	ErrTransferFailed    = errors.New("collateral or fund transfer failed")
)

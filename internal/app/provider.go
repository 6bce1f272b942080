package app

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/windfall-labs/windfall-raffle/internal/service"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// 链上交互关闭时的本地替身，供开发和联调环境使用。
// 押品和资金操作只记日志，随机数在本地生成并异步回调，
// 业务流程可以完整跑通。

// devCustody 押品托管替身
type devCustody struct{}

func (devCustody) TransferInto(ctx context.Context, owner, contract, tokenID string) error {
	logger.Info("dev custody: transfer into escrow", "owner", owner, "contract", contract, "token_id", tokenID)
	return nil
}

func (devCustody) ReleaseTo(ctx context.Context, recipient, contract, tokenID string) error {
	logger.Info("dev custody: release collateral", "recipient", recipient, "contract", contract, "token_id", tokenID)
	return nil
}

func (devCustody) RecoverTo(ctx context.Context, recipient, contract, tokenID string) error {
	logger.Info("dev custody: recover collateral", "recipient", recipient, "contract", contract, "token_id", tokenID)
	return nil
}

// devTransfer 资金转账替身
type devTransfer struct{}

func (devTransfer) Pay(ctx context.Context, recipient string, amount decimal.Decimal) error {
	logger.Info("dev transfer: pay", "recipient", recipient, "amount", amount.String())
	return nil
}

// localOracle 本地随机数预言机替身
// 请求记录落库后异步回调，模拟真实预言机的事件时序
type localOracle struct {
	sink  service.RandomnessService
	delay time.Duration
}

func newLocalOracle(delay time.Duration) *localOracle {
	return &localOracle{delay: delay}
}

// Bind 绑定回调目标 (预言机先于随机数服务构造)
func (o *localOracle) Bind(sink service.RandomnessService) {
	o.sink = sink
}

func (o *localOracle) RequestRandom(ctx context.Context, raffleID int64, entryCount int64) (string, error) {
	requestID := uuid.NewString()

	go o.deliver(requestID, raffleID)

	logger.Info("dev oracle: randomness requested",
		"request_id", requestID,
		"raffle_id", raffleID,
		"entry_count", entryCount,
	)
	return requestID, nil
}

// deliver 延迟生成随机数并回调
// 请求记录在调用方事务中落库，落库前的回调会命中未知请求，重试几轮等它提交
func (o *localOracle) deliver(requestID string, raffleID int64) {
	if o.sink == nil {
		logger.Error("dev oracle: no sink bound, fulfillment dropped", "request_id", requestID)
		return
	}

	time.Sleep(o.delay)

	raw, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		logger.Error("dev oracle: generate random failed", "request_id", requestID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for attempt := 0; attempt < 5; attempt++ {
		err = o.sink.OnFulfilled(ctx, requestID, raw)
		if err == nil {
			return
		}
		if !errors.Is(err, service.ErrUnknownRequest) {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	logger.Error("dev oracle: fulfillment failed",
		"request_id", requestID,
		"raffle_id", raffleID,
		"error", err,
	)
}

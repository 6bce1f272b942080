package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/windfall-labs/windfall-raffle/internal/metrics"
	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// PayoutEngine 结算执行引擎接口
//
// 执行顺序固定：押品给中奖者，卖家分成，平台分成。
// 分成按基点向下取整，卖家拿余数，平台分成 + 卖家分成 == 筹集总额。
// 任何一腿失败立即中止并返回 ErrTransferFailed，不修改抽奖状态，
// 留给调用方决定重试或走紧急通道。
type PayoutEngine interface {
	// Settle 执行一次完整结算
	Settle(ctx context.Context, raffle *model.Raffle, winner string) error

	// ReturnCollateral 把押品退回指定地址 (取消/故障恢复)
	ReturnCollateral(ctx context.Context, raffle *model.Raffle, recipient string) error

	// Refund 向买家退款
	Refund(ctx context.Context, recipient string, amount decimal.Decimal) error
}

// payoutEngine 结算执行引擎实现
type payoutEngine struct {
	custody        CollateralCustody
	transfer       ValueTransfer
	platformWallet string
}

// NewPayoutEngine 创建结算执行引擎
func NewPayoutEngine(custody CollateralCustody, transfer ValueTransfer, platformWallet string) PayoutEngine {
	return &payoutEngine{
		custody:        custody,
		transfer:       transfer,
		platformWallet: platformWallet,
	}
}

// Settle 执行一次完整结算
func (e *payoutEngine) Settle(ctx context.Context, raffle *model.Raffle, winner string) error {
	platformCut := raffle.PlatformCut()
	sellerCut := raffle.SellerCut()

	if err := e.custody.ReleaseTo(ctx, winner, raffle.CollateralContract, raffle.CollateralTokenID); err != nil {
		metrics.RecordPayout("collateral", false)
		logger.Error("release collateral failed",
			"raffle_id", raffle.ID,
			"winner", winner,
			"error", err)
		return fmt.Errorf("%w: release collateral: %v", ErrTransferFailed, err)
	}
	metrics.RecordPayout("collateral", true)

	if sellerCut.IsPositive() {
		if err := e.transfer.Pay(ctx, raffle.Seller, sellerCut); err != nil {
			metrics.RecordPayout("seller", false)
			logger.Error("pay seller cut failed",
				"raffle_id", raffle.ID,
				"seller", raffle.Seller,
				"amount", sellerCut.String(),
				"error", err)
			return fmt.Errorf("%w: pay seller: %v", ErrTransferFailed, err)
		}
		metrics.RecordPayout("seller", true)
	}

	if platformCut.IsPositive() {
		if err := e.transfer.Pay(ctx, e.platformWallet, platformCut); err != nil {
			metrics.RecordPayout("platform", false)
			logger.Error("pay platform cut failed",
				"raffle_id", raffle.ID,
				"amount", platformCut.String(),
				"error", err)
			return fmt.Errorf("%w: pay platform: %v", ErrTransferFailed, err)
		}
		metrics.RecordPayout("platform", true)
	}

	logger.Info("raffle settled",
		"raffle_id", raffle.ID,
		"winner", winner,
		"seller_cut", sellerCut.String(),
		"platform_cut", platformCut.String())
	return nil
}

// ReturnCollateral 把押品退回指定地址
func (e *payoutEngine) ReturnCollateral(ctx context.Context, raffle *model.Raffle, recipient string) error {
	if err := e.custody.RecoverTo(ctx, recipient, raffle.CollateralContract, raffle.CollateralTokenID); err != nil {
		metrics.RecordPayout("collateral", false)
		return fmt.Errorf("%w: return collateral: %v", ErrTransferFailed, err)
	}
	metrics.RecordPayout("collateral", true)
	return nil
}

// Refund 向买家退款
func (e *payoutEngine) Refund(ctx context.Context, recipient string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := e.transfer.Pay(ctx, recipient, amount); err != nil {
		return fmt.Errorf("%w: refund: %v", ErrTransferFailed, err)
	}
	return nil
}

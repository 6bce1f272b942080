package service

import (
	"context"
	"errors"
	"time"

	"github.com/windfall-labs/windfall-raffle/internal/metrics"
	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// IDGenerator 抽奖 ID 生成器接口
type IDGenerator interface {
	Generate() (int64, error)
}

// CreateRaffleParams 创建抽奖参数
type CreateRaffleParams struct {
	Seller             string
	CollateralContract string
	CollateralTokenID  string
	MaxEntries         int64
	TicketPrice        string
	EntriesPerTicket   int64
	PlatformFeeBps     int64
	ExpiresAt          int64
}

// RaffleService 抽奖生命周期服务接口
type RaffleService interface {
	// CreateRaffle 创建抽奖并托管押品
	CreateRaffle(ctx context.Context, params *CreateRaffleParams) (*model.Raffle, error)

	// RequestClose 到期关闭并发起开奖
	RequestClose(ctx context.Context, caller string, raffleID int64) error

	// RetryClose 重试开奖请求 (仅运营角色，针对 CLOSING_FAILED)
	RetryClose(ctx context.Context, caller string, raffleID int64) error

	// RequestEarlyCashout 卖家到期前提前关闭并发起开奖
	RequestEarlyCashout(ctx context.Context, caller string, raffleID int64) error

	// Cancel 取消抽奖，押品退回卖家，买家转入退款通道
	Cancel(ctx context.Context, caller string, raffleID int64) error

	// ExtractCollateral 手动取回押品 (仅平台所有者，故障恢复)
	ExtractCollateral(ctx context.Context, caller string, raffleID int64, recipient string) error

	// ExtractFunds 手动转出资金 (仅平台所有者，故障恢复)
	ExtractFunds(ctx context.Context, caller string, recipient string, amount string) error

	// GetRaffle 查询抽奖
	GetRaffle(ctx context.Context, raffleID int64) (*model.Raffle, error)

	// ListBySeller 查询卖家的抽奖列表
	ListBySeller(ctx context.Context, seller string, page *repository.Pagination) ([]*model.Raffle, error)
}

// raffleService 抽奖生命周期服务实现
type raffleService struct {
	raffleRepo repository.RaffleRepository
	custody    CollateralCustody
	payout     PayoutEngine
	randomness RandomnessService
	locker     RaffleLocker
	publisher  EventPublisher
	access     AccessControl
	idGen      IDGenerator
}

// NewRaffleService 创建抽奖生命周期服务
func NewRaffleService(
	raffleRepo repository.RaffleRepository,
	custody CollateralCustody,
	payout PayoutEngine,
	randomness RandomnessService,
	locker RaffleLocker,
	publisher EventPublisher,
	access AccessControl,
	idGen IDGenerator,
) RaffleService {
	return &raffleService{
		raffleRepo: raffleRepo,
		custody:    custody,
		payout:     payout,
		randomness: randomness,
		locker:     locker,
		publisher:  publisher,
		access:     access,
		idGen:      idGen,
	}
}

// CreateRaffle 创建抽奖并托管押品
//
// 先落库 (CREATED)，再执行押品托管，托管成功后推进到 ACCEPTED。
// 托管失败时记录停留在 CREATED：该状态没有出边到取消，
// 只能由平台所有者通过 ExtractCollateral 人工处理。
func (s *raffleService) CreateRaffle(ctx context.Context, params *CreateRaffleParams) (*model.Raffle, error) {
	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues("create").Observe(time.Since(start).Seconds())
	}()

	raffle, err := s.buildRaffle(params)
	if err != nil {
		return nil, err
	}

	if err := s.raffleRepo.Create(ctx, raffle); err != nil {
		return nil, err
	}
	metrics.RecordRaffleEvent("created")
	s.publish(ctx, &RaffleEvent{
		Type:      EventRaffleCreated,
		RaffleID:  raffle.ID,
		Seller:    raffle.Seller,
		Timestamp: time.Now().UnixMilli(),
	})

	if err := s.custody.TransferInto(ctx, params.Seller, params.CollateralContract, params.CollateralTokenID); err != nil {
		logger.Error("collateral transfer into custody failed",
			"raffle_id", raffle.ID,
			"seller", params.Seller,
			"error", err)
		return nil, ErrTransferFailed
	}

	if err := s.raffleRepo.UpdateStatus(ctx, raffle.ID, model.RaffleStatusCreated, model.RaffleStatusAccepted); err != nil {
		return nil, err
	}
	raffle.Status = model.RaffleStatusAccepted

	metrics.RecordRaffleEvent("accepted")
	s.publish(ctx, &RaffleEvent{
		Type:      EventRaffleAccepted,
		RaffleID:  raffle.ID,
		Seller:    raffle.Seller,
		Timestamp: time.Now().UnixMilli(),
	})

	logger.Info("raffle created",
		"raffle_id", raffle.ID,
		"seller", raffle.Seller,
		"max_entries", raffle.MaxEntries,
		"ticket_price", raffle.TicketPrice.String(),
		"expires_at", raffle.ExpiresAt)
	return raffle, nil
}

// buildRaffle 校验参数并构造抽奖记录
func (s *raffleService) buildRaffle(params *CreateRaffleParams) (*model.Raffle, error) {
	if params.Seller == "" || params.CollateralContract == "" || params.CollateralTokenID == "" {
		return nil, ErrInvalidArgument
	}
	if params.MaxEntries <= 0 {
		return nil, ErrInvalidArgument
	}
	if params.EntriesPerTicket <= 0 || params.EntriesPerTicket > params.MaxEntries {
		return nil, ErrInvalidArgument
	}
	if params.PlatformFeeBps < 0 || params.PlatformFeeBps > model.FeeBpsDenominator {
		return nil, ErrInvalidArgument
	}
	if params.ExpiresAt <= time.Now().UnixMilli() {
		return nil, ErrInvalidArgument
	}
	price, err := parseAmount(params.TicketPrice)
	if err != nil || !price.IsPositive() {
		return nil, ErrInvalidArgument
	}

	id, err := s.idGen.Generate()
	if err != nil {
		return nil, err
	}

	return &model.Raffle{
		ID:                 id,
		Status:             model.RaffleStatusCreated,
		Seller:             params.Seller,
		Winner:             params.Seller, // 默认中奖者为卖家，结算时覆盖一次
		CollateralContract: params.CollateralContract,
		CollateralTokenID:  params.CollateralTokenID,
		MaxEntries:         params.MaxEntries,
		TicketPrice:        price,
		EntriesPerTicket:   params.EntriesPerTicket,
		PlatformFeeBps:     params.PlatformFeeBps,
		ExpiresAt:          params.ExpiresAt,
	}, nil
}

// RequestClose 到期关闭并发起开奖
//
// 关闭不设权限：任何地址都能关闭一个已到期的抽奖，
// 到期校验和状态守卫是仅有的两道门。CLOSING_FAILED 的抽奖
// 可以从这里重新进入开奖，此时不再校验到期。
// 零流水抽奖不经过预言机：押品直接退回卖家并立即进入终态。
func (s *raffleService) RequestClose(ctx context.Context, caller string, raffleID int64) error {
	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues("request_close").Observe(time.Since(start).Seconds())
	}()

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if !raffle.CanTransitionTo(model.RaffleStatusClosingRequested) {
			return ErrWrongStatus
		}
		if raffle.Status == model.RaffleStatusAccepted && !raffle.IsExpired(time.Now().UnixMilli()) {
			return ErrNotExpired
		}

		if raffle.AmountRaised.IsZero() {
			return s.settleEmpty(ctx, raffle)
		}
		return s.beginDraw(ctx, raffle, raffle.Status)
	})
}

// RetryClose 重试开奖请求
func (s *raffleService) RetryClose(ctx context.Context, caller string, raffleID int64) error {
	if !s.access.IsOperator(caller) {
		return ErrUnauthorized
	}

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != model.RaffleStatusClosingFailed {
			return ErrWrongStatus
		}
		return s.beginDraw(ctx, raffle, model.RaffleStatusClosingFailed)
	})
}

// RequestEarlyCashout 卖家到期前提前关闭并发起开奖
//
// 只有卖家本人能提前套现，且抽奖必须未过期、有实收资金
// (只有免费赠票的抽奖没有可套现的流水)。已过期的抽奖走正常关闭路径。
func (s *raffleService) RequestEarlyCashout(ctx context.Context, caller string, raffleID int64) error {
	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues("early_cashout").Observe(time.Since(start).Seconds())
	}()

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if caller != raffle.Seller {
			return ErrUnauthorized
		}
		if raffle.Status != model.RaffleStatusAccepted {
			return ErrWrongStatus
		}
		if raffle.IsExpired(time.Now().UnixMilli()) {
			return ErrAlreadyExpired
		}
		if raffle.AmountRaised.IsZero() {
			return ErrInvalidArgument
		}

		if err := s.raffleRepo.SetEarlyCashout(ctx, raffleID); err != nil {
			return err
		}
		raffle.EarlyCashout = true

		logger.Info("early cashout requested", "raffle_id", raffleID, "seller", caller)
		return s.beginDraw(ctx, raffle, model.RaffleStatusAccepted)
	})
}

// beginDraw 推进到开奖中并发起随机数请求
// 请求失败时进入 CLOSING_FAILED，等待运营重试
func (s *raffleService) beginDraw(ctx context.Context, raffle *model.Raffle, from model.RaffleStatus) error {
	if err := s.raffleRepo.UpdateStatus(ctx, raffle.ID, from, model.RaffleStatusClosingRequested); err != nil {
		return mapRepoError(err)
	}
	raffle.Status = model.RaffleStatusClosingRequested

	metrics.RecordRaffleEvent("closing_requested")
	s.publish(ctx, &RaffleEvent{
		Type:      EventClosingRequested,
		RaffleID:  raffle.ID,
		Seller:    raffle.Seller,
		Entries:   raffle.EntriesLength,
		Timestamp: time.Now().UnixMilli(),
	})

	if err := s.randomness.IssueRequest(ctx, raffle); err != nil {
		metrics.RecordRaffleEvent("closing_failed")
		if updErr := s.raffleRepo.UpdateStatus(ctx, raffle.ID,
			model.RaffleStatusClosingRequested, model.RaffleStatusClosingFailed); updErr != nil {
			logger.Error("mark closing failed error",
				"raffle_id", raffle.ID, "error", updErr)
		}
		return err
	}
	return nil
}

// settleEmpty 零流水结算：押品退回卖家，直接进入终态
//
// 判定基于实收金额而不是票数。只有免费赠票、没有任何付费
// 购买的抽奖也走这条路：没人付过钱，奖品归卖家，分成为零。
func (s *raffleService) settleEmpty(ctx context.Context, raffle *model.Raffle) error {
	if err := s.raffleRepo.UpdateStatus(ctx, raffle.ID, raffle.Status, model.RaffleStatusClosingRequested); err != nil {
		return err
	}

	if err := s.payout.ReturnCollateral(ctx, raffle, raffle.Seller); err != nil {
		return err
	}

	if err := s.raffleRepo.MarkSettled(ctx, raffle.ID, raffle.Seller, 0, raffle.TerminalStatus()); err != nil {
		return err
	}

	metrics.RecordRaffleEvent("settled")
	s.publish(ctx, &RaffleEvent{
		Type:      EventRaffleSettled,
		RaffleID:  raffle.ID,
		Seller:    raffle.Seller,
		Winner:    raffle.Seller,
		Timestamp: time.Now().UnixMilli(),
	})

	logger.Info("empty raffle closed, collateral returned to seller",
		"raffle_id", raffle.ID, "seller", raffle.Seller)
	return nil
}

// Cancel 取消抽奖
//
// 押品退回卖家后买家账户转入退款通道，各自调用 ClaimRefund 领取。
func (s *raffleService) Cancel(ctx context.Context, caller string, raffleID int64) error {
	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues("cancel").Observe(time.Since(start).Seconds())
	}()

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if caller != raffle.Seller && !s.access.IsOperator(caller) {
			return ErrUnauthorized
		}
		if !raffle.CanTransitionTo(model.RaffleStatusCancelRequested) {
			return ErrWrongStatus
		}

		if err := s.raffleRepo.UpdateStatus(ctx, raffleID, model.RaffleStatusAccepted, model.RaffleStatusCancelRequested); err != nil {
			return mapRepoError(err)
		}

		if err := s.payout.ReturnCollateral(ctx, raffle, raffle.Seller); err != nil {
			// 押品退回失败，停留在 CANCEL_REQUESTED 等待人工处理
			logger.Error("return collateral on cancel failed",
				"raffle_id", raffleID, "error", err)
			return err
		}

		if err := s.raffleRepo.UpdateStatus(ctx, raffleID, model.RaffleStatusCancelRequested, model.RaffleStatusCancelled); err != nil {
			return err
		}

		metrics.RecordRaffleEvent("cancelled")
		s.publish(ctx, &RaffleEvent{
			Type:      EventRaffleCancelled,
			RaffleID:  raffleID,
			Seller:    raffle.Seller,
			Timestamp: time.Now().UnixMilli(),
		})

		logger.Info("raffle cancelled", "raffle_id", raffleID, "caller", caller)
		return nil
	})
}

// ExtractCollateral 手动取回押品
func (s *raffleService) ExtractCollateral(ctx context.Context, caller string, raffleID int64, recipient string) error {
	if !s.access.IsOwner(caller) {
		return ErrUnauthorized
	}
	if recipient == "" {
		return ErrInvalidArgument
	}

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		logger.Warn("manual collateral extraction",
			"raffle_id", raffleID,
			"caller", caller,
			"recipient", recipient,
			"status", raffle.Status.String())
		return s.payout.ReturnCollateral(ctx, raffle, recipient)
	})
}

// ExtractFunds 手动转出资金
func (s *raffleService) ExtractFunds(ctx context.Context, caller string, recipient string, amount string) error {
	if !s.access.IsOwner(caller) {
		return ErrUnauthorized
	}
	if recipient == "" {
		return ErrInvalidArgument
	}
	value, err := parseAmount(amount)
	if err != nil || !value.IsPositive() {
		return ErrInvalidArgument
	}

	logger.Warn("manual fund extraction",
		"caller", caller,
		"recipient", recipient,
		"amount", value.String())
	return s.payout.Refund(ctx, recipient, value)
}

// GetRaffle 查询抽奖
func (s *raffleService) GetRaffle(ctx context.Context, raffleID int64) (*model.Raffle, error) {
	return s.raffleRepo.GetByID(ctx, raffleID)
}

// ListBySeller 查询卖家的抽奖列表
func (s *raffleService) ListBySeller(ctx context.Context, seller string, page *repository.Pagination) ([]*model.Raffle, error) {
	if seller == "" {
		return nil, ErrInvalidArgument
	}
	return s.raffleRepo.ListBySeller(ctx, seller, page)
}

func (s *raffleService) publish(ctx context.Context, event *RaffleEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRaffleEvent(ctx, event); err != nil {
		logger.Warn("publish raffle event failed",
			"type", event.Type,
			"raffle_id", event.RaffleID,
			"error", err)
	}
}

// mapRepoError 把仓储层的状态冲突映射为业务错误
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return ErrWrongStatus
	case errors.Is(err, repository.ErrCapacityExceeded):
		return ErrCapacityExceeded
	default:
		return err
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/windfall-labs/windfall-raffle/internal/metrics"
	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// RandomnessService 随机数协调服务接口
//
// 负责与预言机之间的请求/回调闭环：发出请求、消费回调、
// 归一化随机数并触发结算。回调异步到达且可能重复、乱序，
// 所有入口都在抽奖独占锁内执行。
type RandomnessService interface {
	// IssueRequest 为抽奖发起随机数请求
	// 调用方必须已把抽奖推进到 CLOSING_REQUESTED 并持有该抽奖的锁
	IssueRequest(ctx context.Context, raffle *model.Raffle) error

	// OnFulfilled 处理预言机回调
	// 未知请求 ID 返回 ErrUnknownRequest；重复回调和命中已结束
	// 抽奖的回调是幂等空操作
	OnFulfilled(ctx context.Context, requestID string, rawRandom *big.Int) error

	// SettleEmergency 紧急结算通道 (仅运营角色)
	// 预言机长期不回调时由运营注入随机数直接结算
	SettleEmergency(ctx context.Context, caller string, raffleID int64, rawRandom *big.Int) error
}

// randomnessService 随机数协调服务实现
type randomnessService struct {
	raffleRepo repository.RaffleRepository
	entryRepo  repository.EntryRepository
	randomRepo repository.RandomnessRepository
	oracle     RandomnessOracle
	payout     PayoutEngine
	selector   *WinnerSelector
	locker     RaffleLocker
	publisher  EventPublisher
	access     AccessControl
}

// NewRandomnessService 创建随机数协调服务
func NewRandomnessService(
	raffleRepo repository.RaffleRepository,
	entryRepo repository.EntryRepository,
	randomRepo repository.RandomnessRepository,
	oracle RandomnessOracle,
	payout PayoutEngine,
	locker RaffleLocker,
	publisher EventPublisher,
	access AccessControl,
) RandomnessService {
	return &randomnessService{
		raffleRepo: raffleRepo,
		entryRepo:  entryRepo,
		randomRepo: randomRepo,
		oracle:     oracle,
		payout:     payout,
		selector:   NewWinnerSelector(),
		locker:     locker,
		publisher:  publisher,
		access:     access,
	}
}

// IssueRequest 为抽奖发起随机数请求
func (s *randomnessService) IssueRequest(ctx context.Context, raffle *model.Raffle) error {
	requestID, err := s.oracle.RequestRandom(ctx, raffle.ID, raffle.EntriesLength)
	if err != nil {
		metrics.OracleRequests.WithLabelValues("failed").Inc()
		logger.Error("randomness request failed",
			"raffle_id", raffle.ID,
			"error", err)
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	req := &model.RandomnessRequest{
		RequestID:     requestID,
		RaffleID:      raffle.ID,
		EntrySnapshot: raffle.EntriesLength,
	}
	if err := s.randomRepo.Create(ctx, req); err != nil {
		return err
	}

	metrics.OracleRequests.WithLabelValues("issued").Inc()
	logger.Info("randomness requested",
		"raffle_id", raffle.ID,
		"request_id", requestID,
		"entry_snapshot", raffle.EntriesLength)
	return nil
}

// OnFulfilled 处理预言机回调
func (s *randomnessService) OnFulfilled(ctx context.Context, requestID string, rawRandom *big.Int) error {
	if rawRandom == nil {
		return ErrInvalidArgument
	}

	req, err := s.randomRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return ErrUnknownRequest
		}
		return err
	}

	return s.locker.WithLock(ctx, req.RaffleID, func(ctx context.Context) error {
		return s.fulfill(ctx, req, rawRandom)
	})
}

// fulfill 锁内处理回调：幂等判重、归一化、结算
//
// 先 MarkFulfilled 再结算。若标记后进程崩溃或转账失败，
// 请求停留在已回调未结算：重复回调会被判重拒绝，
// 此时只能走 SettleEmergency 用已落库的随机数补结算。
func (s *randomnessService) fulfill(ctx context.Context, req *model.RandomnessRequest, rawRandom *big.Int) error {
	raffle, err := s.raffleRepo.GetByID(ctx, req.RaffleID)
	if err != nil {
		return err
	}
	// 抽奖已结束：重发请求竞争或超时后的迟到回调，静默丢弃
	if raffle.Status.IsTerminal() {
		metrics.OracleRequests.WithLabelValues("duplicate").Inc()
		logger.Info("discard fulfillment for terminal raffle",
			"raffle_id", raffle.ID,
			"request_id", req.RequestID,
			"status", raffle.Status.String())
		return nil
	}

	if err := s.randomRepo.MarkFulfilled(ctx, req.RequestID, rawRandom.String()); err != nil {
		if errors.Is(err, repository.ErrRequestAlreadyFulfilled) {
			metrics.OracleRequests.WithLabelValues("duplicate").Inc()
			logger.Info("duplicate fulfillment ignored",
				"raffle_id", raffle.ID,
				"request_id", req.RequestID)
			return nil
		}
		return err
	}

	metrics.OracleRequests.WithLabelValues("fulfilled").Inc()
	if req.CreatedAt > 0 {
		metrics.DrawLatency.Observe(float64(time.Now().UnixMilli()-req.CreatedAt) / 1000)
	}

	normalized := model.NormalizeRandom(rawRandom, req.EntrySnapshot)
	return s.settle(ctx, raffle, normalized)
}

// settle 选出中奖者、执行转账、推进终态
//
// 至多一次由 MarkSettled 的状态守卫保证：只有仍处于
// CLOSING_REQUESTED 的抽奖能被推进终态。转账在标记之前执行，
// 转账失败时状态不变，可由紧急通道重试。
func (s *randomnessService) settle(ctx context.Context, raffle *model.Raffle, randomNumber int64) error {
	entries, err := s.entryRepo.ListByRaffle(ctx, raffle.ID)
	if err != nil {
		return err
	}

	winner, err := s.selector.Select(entries, DenyList(raffle.Seller), randomNumber)
	if err != nil {
		logger.Error("winner selection failed",
			"raffle_id", raffle.ID,
			"random_number", randomNumber,
			"entries", len(entries),
			"error", err)
		return err
	}

	if err := s.payout.Settle(ctx, raffle, winner.Buyer); err != nil {
		return err
	}

	terminal := raffle.TerminalStatus()
	if err := s.raffleRepo.MarkSettled(ctx, raffle.ID, winner.Buyer, randomNumber, terminal); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// 并发结算竞争，对方已经推进终态
			logger.Warn("settle race lost", "raffle_id", raffle.ID)
			return nil
		}
		return err
	}

	metrics.RecordRaffleEvent("settled")
	s.publish(ctx, &RaffleEvent{
		Type:         EventRaffleSettled,
		RaffleID:     raffle.ID,
		Seller:       raffle.Seller,
		Winner:       winner.Buyer,
		AmountRaised: raffle.AmountRaised.String(),
		RandomNumber: randomNumber,
		Timestamp:    time.Now().UnixMilli(),
	})

	logger.Info("raffle draw completed",
		"raffle_id", raffle.ID,
		"winner", winner.Buyer,
		"random_number", randomNumber,
		"status", terminal.String())
	return nil
}

// SettleEmergency 紧急结算通道
func (s *randomnessService) SettleEmergency(ctx context.Context, caller string, raffleID int64, rawRandom *big.Int) error {
	if !s.access.IsOperator(caller) {
		return ErrUnauthorized
	}
	if rawRandom == nil {
		return ErrInvalidArgument
	}

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != model.RaffleStatusClosingRequested {
			return ErrWrongStatus
		}

		// 归一化基于最近一次请求的票数快照；找不到请求记录时
		// 退化为当前票数 (开奖中票数已冻结，两者一致)
		snapshot := raffle.EntriesLength
		if req, err := s.randomRepo.GetLatestByRaffle(ctx, raffleID); err == nil {
			snapshot = req.EntrySnapshot
		}

		normalized := model.NormalizeRandom(rawRandom, snapshot)
		logger.Warn("emergency settlement triggered",
			"raffle_id", raffleID,
			"caller", caller,
			"random_number", normalized)
		return s.settle(ctx, raffle, normalized)
	})
}

func (s *randomnessService) publish(ctx context.Context, event *RaffleEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRaffleEvent(ctx, event); err != nil {
		// 事件流是旁路，发布失败不影响主流程
		logger.Warn("publish raffle event failed",
			"type", event.Type,
			"raffle_id", event.RaffleID,
			"error", err)
	}
}

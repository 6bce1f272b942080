package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/windfall-labs/windfall-raffle/internal/metrics"
	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// parseAmount 解析十进制金额字符串
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidArgument
	}
	return d, nil
}

// EntryService 票务账本服务接口
//
// 账本只追加：每次购买/赠票追加一条带前缀和的记录，
// 前缀和把 [1, entriesLength] 切分为连续区间供开奖定位。
type EntryService interface {
	// BuyEntries 购票
	// 支付金额必须与 票价 x 张数 精确相等，多付少付都拒绝
	BuyEntries(ctx context.Context, buyer string, raffleID int64, ticketCount int64, paidAmount string) error

	// GrantFreeEntries 运营赠票 (零支付)
	// 列表中每个地址追加一条权重 1 的记录，重复地址重复计票。
	// 赠票不走支付校验，也不过滤卖家地址——卖家名下的赠票
	// 记录由开奖时的拒绝名单兜底
	GrantFreeEntries(ctx context.Context, caller string, raffleID int64, recipients []string) error

	// ClaimRefund 买家在抽奖取消后领取退款 (至多一次)
	ClaimRefund(ctx context.Context, buyer string, raffleID int64) error

	// ListEntries 按插入顺序返回抽奖的全部购票记录
	ListEntries(ctx context.Context, raffleID int64) ([]*model.EntryRecord, error)

	// GetClaim 查询买家账户
	GetClaim(ctx context.Context, raffleID int64, buyer string) (*model.ClaimAccount, error)
}

// entryService 票务账本服务实现
type entryService struct {
	raffleRepo repository.RaffleRepository
	entryRepo  repository.EntryRepository
	claimRepo  repository.ClaimRepository
	tx         TxManager
	payout     PayoutEngine
	locker     RaffleLocker
	publisher  EventPublisher
	access     AccessControl
}

// NewEntryService 创建票务账本服务
func NewEntryService(
	raffleRepo repository.RaffleRepository,
	entryRepo repository.EntryRepository,
	claimRepo repository.ClaimRepository,
	tx TxManager,
	payout PayoutEngine,
	locker RaffleLocker,
	publisher EventPublisher,
	access AccessControl,
) EntryService {
	return &entryService{
		raffleRepo: raffleRepo,
		entryRepo:  entryRepo,
		claimRepo:  claimRepo,
		tx:         tx,
		payout:     payout,
		locker:     locker,
		publisher:  publisher,
		access:     access,
	}
}

// BuyEntries 购票
func (s *entryService) BuyEntries(ctx context.Context, buyer string, raffleID int64, ticketCount int64, paidAmount string) error {
	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues("buy_entries").Observe(time.Since(start).Seconds())
	}()

	if buyer == "" {
		return ErrInvalidArgument
	}
	paid, err := parseAmount(paidAmount)
	if err != nil {
		return err
	}

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != model.RaffleStatusAccepted {
			return ErrWrongStatus
		}
		if raffle.IsExpired(time.Now().UnixMilli()) {
			return ErrAlreadyExpired
		}
		// 卖家不得购买自己的抽奖
		if buyer == raffle.Seller {
			return ErrUnauthorized
		}
		if ticketCount < 1 || ticketCount > raffle.EntriesPerTicket {
			return ErrInvalidArgument
		}
		if raffle.EntriesLength+ticketCount > raffle.MaxEntries {
			return ErrCapacityExceeded
		}
		required := raffle.RequiredPayment(ticketCount)
		if !paid.Equal(required) {
			return ErrPaymentMismatch
		}

		if err := s.appendEntry(ctx, raffle, buyer, ticketCount, required, false); err != nil {
			return err
		}

		metrics.EntriesSold.WithLabelValues("purchase").Add(float64(ticketCount))
		amountFloat, _ := required.Float64()
		metrics.AmountRaised.Add(amountFloat)

		s.publish(ctx, &RaffleEvent{
			Type:      EventEntryPurchased,
			RaffleID:  raffleID,
			Buyer:     buyer,
			Entries:   ticketCount,
			Timestamp: time.Now().UnixMilli(),
		})

		logger.Info("entries purchased",
			"raffle_id", raffleID,
			"buyer", buyer,
			"entries", ticketCount,
			"amount", required.String())
		return nil
	})
}

// GrantFreeEntries 运营赠票
func (s *entryService) GrantFreeEntries(ctx context.Context, caller string, raffleID int64, recipients []string) error {
	if !s.access.IsOperator(caller) {
		return ErrUnauthorized
	}
	if len(recipients) == 0 {
		return ErrInvalidArgument
	}
	for _, recipient := range recipients {
		if recipient == "" {
			return ErrInvalidArgument
		}
	}
	count := int64(len(recipients))

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != model.RaffleStatusAccepted {
			return ErrWrongStatus
		}
		if raffle.IsExpired(time.Now().UnixMilli()) {
			return ErrAlreadyExpired
		}
		if raffle.EntriesLength+count > raffle.MaxEntries {
			return ErrCapacityExceeded
		}

		// 整批一个事务：要么全部到账，要么一张不发
		if err := s.tx.Transaction(ctx, func(ctx context.Context) error {
			for _, recipient := range recipients {
				if err := s.appendRecord(ctx, raffle, recipient, 1, decimal.Zero, true); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}

		metrics.EntriesSold.WithLabelValues("free_grant").Add(float64(count))
		s.publish(ctx, &RaffleEvent{
			Type:      EventEntryGranted,
			RaffleID:  raffleID,
			Entries:   count,
			Timestamp: time.Now().UnixMilli(),
		})

		logger.Info("free entries granted",
			"raffle_id", raffleID,
			"caller", caller,
			"recipients", count)
		return nil
	})
}

// appendEntry 在一个事务内追加一条账本记录
func (s *entryService) appendEntry(ctx context.Context, raffle *model.Raffle, buyer string, entries int64, amount decimal.Decimal, freeGrant bool) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		return s.appendRecord(ctx, raffle, buyer, entries, amount, freeGrant)
	})
}

// appendRecord 推进计数器、追加账本记录、累加买家账户
//
// 调用方负责事务边界。计数器更新带数据库侧容量守卫
// (并发下最后的防线)，前缀和取自最后一条记录，
// 追加顺序由抽奖独占锁保证。
func (s *entryService) appendRecord(ctx context.Context, raffle *model.Raffle, buyer string, entries int64, amount decimal.Decimal, freeGrant bool) error {
	if err := s.raffleRepo.AddEntries(ctx, raffle.ID, entries, amount.String()); err != nil {
		return mapRepoError(err)
	}

	var index, cumulative int64
	last, err := s.entryRepo.GetLast(ctx, raffle.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrEntryNotFound) {
			return err
		}
	} else {
		index = last.Index + 1
		cumulative = last.CumulativeEntries
	}

	record := &model.EntryRecord{
		RaffleID:          raffle.ID,
		Index:             index,
		Buyer:             buyer,
		Entries:           entries,
		CumulativeEntries: cumulative + entries,
		FreeGrant:         freeGrant,
	}
	if err := s.entryRepo.Append(ctx, record); err != nil {
		return err
	}

	return s.claimRepo.AddTo(ctx, raffle.ID, buyer, entries, amount.String())
}

// ClaimRefund 买家在抽奖取消后领取退款
func (s *entryService) ClaimRefund(ctx context.Context, buyer string, raffleID int64) error {
	if buyer == "" {
		return ErrInvalidArgument
	}

	return s.locker.WithLock(ctx, raffleID, func(ctx context.Context) error {
		raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != model.RaffleStatusCancelled {
			return ErrWrongStatus
		}

		claim, err := s.claimRepo.Get(ctx, raffleID, buyer)
		if err != nil {
			return err
		}
		if claim.Claimed {
			return repository.ErrClaimAlreadyClaimed
		}

		// 先标记后转账：标记失败不会发生重复退款，
		// 转账失败时标记留在已认领，由资金提取通道人工补偿
		if err := s.claimRepo.MarkClaimed(ctx, raffleID, buyer); err != nil {
			return err
		}
		if err := s.payout.Refund(ctx, buyer, claim.AmountSpent); err != nil {
			logger.Error("refund transfer failed after claim marked",
				"raffle_id", raffleID,
				"buyer", buyer,
				"amount", claim.AmountSpent.String(),
				"error", err)
			return err
		}

		logger.Info("refund claimed",
			"raffle_id", raffleID,
			"buyer", buyer,
			"amount", claim.AmountSpent.String())
		return nil
	})
}

// ListEntries 按插入顺序返回抽奖的全部购票记录
func (s *entryService) ListEntries(ctx context.Context, raffleID int64) ([]*model.EntryRecord, error) {
	return s.entryRepo.ListByRaffle(ctx, raffleID)
}

// GetClaim 查询买家账户
func (s *entryService) GetClaim(ctx context.Context, raffleID int64, buyer string) (*model.ClaimAccount, error) {
	return s.claimRepo.Get(ctx, raffleID, buyer)
}

func (s *entryService) publish(ctx context.Context, event *RaffleEvent) {
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

package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// CollateralCustody 押品托管协作方接口 (实现方在链上)
type CollateralCustody interface {
	// TransferInto 接受押品托管 (抽奖创建时)
	TransferInto(ctx context.Context, owner, contract, tokenID string) error

	// ReleaseTo 释放押品给中奖者 (结算时)
	ReleaseTo(ctx context.Context, recipient, contract, tokenID string) error

	// RecoverTo 手动取回押品 (取消/故障恢复)
	RecoverTo(ctx context.Context, recipient, contract, tokenID string) error
}

// ValueTransfer 资金转账协作方接口
type ValueTransfer interface {
	// Pay 向收款方转账
	Pay(ctx context.Context, recipient string, amount decimal.Decimal) error
}

// RandomnessOracle 随机数预言机协作方接口
// 历史上存在两个协议版本，差异封装在实现内部，核心只依赖这一个契约。
// 回调通过事件流异步到达，由 RandomnessService.OnFulfilled 处理。
type RandomnessOracle interface {
	// RequestRandom 发起随机数请求，返回预言机签发的请求 ID
	RequestRandom(ctx context.Context, raffleID int64, entryCount int64) (requestID string, err error)
}

// AccessControl 权限协作方接口 (外部策略引擎)
type AccessControl interface {
	// IsOperator 判断调用方是否持有运营角色
	IsOperator(caller string) bool

	// IsOwner 判断调用方是否为平台所有者
	IsOwner(caller string) bool
}

// RaffleLocker 抽奖互斥锁接口
// 每个变更操作必须在对应抽奖的独占锁内执行，所有退出路径释放
type RaffleLocker interface {
	WithLock(ctx context.Context, raffleID int64, fn func(ctx context.Context) error) error
}

// TxManager 数据库事务管理接口
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher 抽奖事件发布接口
type EventPublisher interface {
	PublishRaffleEvent(ctx context.Context, event *RaffleEvent) error
}

// RaffleEvent 抽奖事件
type RaffleEvent struct {
	Type         string `json:"type"`
	RaffleID     int64  `json:"raffle_id"`
	Seller       string `json:"seller,omitempty"`
	Buyer        string `json:"buyer,omitempty"`
	Winner       string `json:"winner,omitempty"`
	Entries      int64  `json:"entries,omitempty"`
	AmountRaised string `json:"amount_raised,omitempty"`
	RandomNumber int64  `json:"random_number,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// 抽奖事件类型
const (
	EventRaffleCreated    = "raffle.created"
	EventRaffleAccepted   = "raffle.accepted"
	EventEntryPurchased   = "raffle.entry.purchased"
	EventEntryGranted     = "raffle.entry.granted"
	EventClosingRequested = "raffle.closing.requested"
	EventRaffleSettled    = "raffle.settled"
	EventRaffleCancelled  = "raffle.cancelled"
)

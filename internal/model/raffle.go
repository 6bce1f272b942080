// Package model 定义抽奖服务的数据模型
package model

import (
	"github.com/shopspring/decimal"
)

// RaffleStatus 抽奖状态
type RaffleStatus int8

const (
	RaffleStatusCreated          RaffleStatus = 0 // 已创建 (押品尚未托管成功)
	RaffleStatusAccepted         RaffleStatus = 1 // 进行中 (押品已托管，可购票)
	RaffleStatusClosingRequested RaffleStatus = 2 // 开奖中 (已向预言机请求随机数)
	RaffleStatusEnded            RaffleStatus = 3 // 已结束 (正常开奖结算完成)
	RaffleStatusCancelRequested  RaffleStatus = 4 // 取消中 (等待押品退回卖家)
	RaffleStatusCancelled        RaffleStatus = 5 // 已取消
	RaffleStatusEarlyCashout     RaffleStatus = 6 // 提前套现结束 (到期前由卖家关闭并结算)
	RaffleStatusClosingFailed    RaffleStatus = 7 // 开奖请求失败 (可重试)
)

// String 返回状态的字符串表示
func (s RaffleStatus) String() string {
	switch s {
	case RaffleStatusCreated:
		return "CREATED"
	case RaffleStatusAccepted:
		return "ACCEPTED"
	case RaffleStatusClosingRequested:
		return "CLOSING_REQUESTED"
	case RaffleStatusEnded:
		return "ENDED"
	case RaffleStatusCancelRequested:
		return "CANCEL_REQUESTED"
	case RaffleStatusCancelled:
		return "CANCELLED"
	case RaffleStatusEarlyCashout:
		return "EARLY_CASHOUT"
	case RaffleStatusClosingFailed:
		return "CLOSING_FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s RaffleStatus) IsTerminal() bool {
	return s == RaffleStatusEnded || s == RaffleStatusCancelled || s == RaffleStatusEarlyCashout
}

// FeeBpsDenominator 平台费率的基点分母
const FeeBpsDenominator = 10000

// Raffle 抽奖模型
// 对应数据库表 raffles，每个押品一条记录，只推进状态，永不删除
type Raffle struct {
	ID                 int64           `gorm:"primaryKey" json:"id"`                                         // 抽奖 ID (Snowflake，单调分配，永不复用)
	Status             RaffleStatus    `gorm:"type:smallint;index;not null;default:0" json:"status"`         // 抽奖状态
	Seller             string          `gorm:"type:varchar(42);index;not null" json:"seller"`                // 卖家地址
	Winner             string          `gorm:"type:varchar(42);not null" json:"winner"`                      // 中奖者 (默认为卖家，结算时设置一次)
	CollateralContract string          `gorm:"type:varchar(42);not null" json:"collateral_contract"`         // 押品合约地址
	CollateralTokenID  string          `gorm:"type:varchar(78);not null" json:"collateral_token_id"`         // 押品 Token ID (uint256 十进制)
	MaxEntries         int64           `gorm:"type:bigint;not null" json:"max_entries"`                      // 票数上限
	EntriesLength      int64           `gorm:"type:bigint;not null;default:0" json:"entries_length"`         // 已售出票数总和 (恒 <= MaxEntries)
	AmountRaised       decimal.Decimal `gorm:"type:decimal(36,18);default:0" json:"amount_raised"`           // 已筹金额 (ACCEPTED 期间单调不减)
	RandomNumber       int64           `gorm:"type:bigint;not null;default:0" json:"random_number"`          // 归一化随机数 [1, EntriesLength]，0 表示未设置
	TicketPrice        decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"ticket_price"`             // 单票价格 (创建时固定)
	EntriesPerTicket   int64           `gorm:"type:bigint;not null;default:1" json:"entries_per_ticket"`     // 单次购买票数上限 (创建时固定)
	PlatformFeeBps     int64           `gorm:"type:bigint;not null" json:"platform_fee_bps"`                 // 平台费率 (基点，分母 10000)
	EarlyCashout       bool            `gorm:"not null;default:false" json:"early_cashout"`                  // 是否提前套现关闭
	ExpiresAt          int64           `gorm:"type:bigint;not null" json:"expires_at"`                       // 到期时间 (毫秒)
	SettledAt          int64           `gorm:"type:bigint" json:"settled_at"`                                // 结算时间 (毫秒)
	CreatedAt          int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`  // 创建时间 (毫秒)
	UpdatedAt          int64           `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`  // 更新时间 (毫秒)
}

// TableName 返回表名
func (Raffle) TableName() string {
	return "raffles"
}

// CanTransitionTo 检查状态转换是否合法
func (r *Raffle) CanTransitionTo(newStatus RaffleStatus) bool {
	transitions := map[RaffleStatus][]RaffleStatus{
		RaffleStatusCreated:  {RaffleStatusAccepted},
		RaffleStatusAccepted: {RaffleStatusClosingRequested, RaffleStatusClosingFailed, RaffleStatusCancelRequested},
		// 开奖中只能走向终态，或在紧急重发失败时回到失败态
		RaffleStatusClosingRequested: {RaffleStatusEnded, RaffleStatusEarlyCashout, RaffleStatusClosingFailed},
		RaffleStatusClosingFailed:    {RaffleStatusClosingRequested},
		RaffleStatusCancelRequested:  {RaffleStatusCancelled},
	}

	allowed, exists := transitions[r.Status]
	if !exists {
		return false // 终态不能转换
	}

	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TerminalStatus 返回结算后应进入的终态
// 提前套现的抽奖结束于 EARLY_CASHOUT，正常到期开奖结束于 ENDED
func (r *Raffle) TerminalStatus() RaffleStatus {
	if r.EarlyCashout {
		return RaffleStatusEarlyCashout
	}
	return RaffleStatusEnded
}

// RequiredPayment 计算购买 ticketCount 张票应支付的金额
func (r *Raffle) RequiredPayment(ticketCount int64) decimal.Decimal {
	return r.TicketPrice.Mul(decimal.NewFromInt(ticketCount))
}

// PlatformCut 计算平台分成 (向下取整)
func (r *Raffle) PlatformCut() decimal.Decimal {
	return r.AmountRaised.
		Mul(decimal.NewFromInt(r.PlatformFeeBps)).
		Div(decimal.NewFromInt(FeeBpsDenominator)).
		Floor()
}

// SellerCut 计算卖家分成 (总额减去平台分成)
func (r *Raffle) SellerCut() decimal.Decimal {
	return r.AmountRaised.Sub(r.PlatformCut())
}

// IsExpired 判断抽奖是否已过期
func (r *Raffle) IsExpired(nowMilli int64) bool {
	return nowMilli > r.ExpiresAt
}

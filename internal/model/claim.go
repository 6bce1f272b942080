package model

import (
	"github.com/shopspring/decimal"
)

// ClaimAccount 买家在单个抽奖中的累计账户
// 对应数据库表 raffle_claims，键为 (raffle_id, buyer)。
// 每次购票或赠票累加，除显式退款认领外永不减少。
type ClaimAccount struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RaffleID    int64           `gorm:"index:idx_raffle_buyer,unique;not null" json:"raffle_id"`     // 抽奖 ID
	Buyer       string          `gorm:"type:varchar(42);index:idx_raffle_buyer,unique;not null" json:"buyer"` // 买家地址
	Entries     int64           `gorm:"type:bigint;not null;default:0" json:"entries"`               // 累计票数
	AmountSpent decimal.Decimal `gorm:"type:decimal(36,18);default:0" json:"amount_spent"`           // 累计支付金额
	Claimed     bool            `gorm:"not null;default:false" json:"claimed"`                       // 退款是否已认领 (取消路径的记账标记)
	CreatedAt   int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"` // 创建时间 (毫秒)
	UpdatedAt   int64           `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"` // 更新时间 (毫秒)
}

// TableName 返回表名
func (ClaimAccount) TableName() string {
	return "raffle_claims"
}

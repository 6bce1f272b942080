package model

import (
	"math/big"
)

// RandomnessRequest 随机数请求
// 对应数据库表 randomness_requests，键为预言机签发的请求 ID。
// EntrySnapshot 记录请求时的票数：请求到回调之间抽奖被锁在
// CLOSING_REQUESTED 状态，票数不再变化，归一化必须基于该快照。
type RandomnessRequest struct {
	RequestID     string `gorm:"primaryKey;type:varchar(78)" json:"request_id"`               // 预言机请求 ID (uint256 十进制)
	RaffleID      int64  `gorm:"index;not null" json:"raffle_id"`                             // 抽奖 ID
	EntrySnapshot int64  `gorm:"type:bigint;not null" json:"entry_snapshot"`                  // 请求时的票数快照
	Fulfilled     bool   `gorm:"not null;default:false" json:"fulfilled"`                     // 是否已回调
	RawRandom     string `gorm:"type:varchar(78)" json:"raw_random"`                          // 原始随机数 (uint256 十进制)
	CreatedAt     int64  `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"` // 创建时间 (毫秒)
	FulfilledAt   int64  `gorm:"type:bigint" json:"fulfilled_at"`                             // 回调时间 (毫秒)
}

// TableName 返回表名
func (RandomnessRequest) TableName() string {
	return "randomness_requests"
}

// NormalizeRandom 把原始随机数归一化到 [1, snapshot]
// normalized = (raw mod snapshot) + 1
func NormalizeRandom(raw *big.Int, snapshot int64) int64 {
	if snapshot <= 0 {
		return 0
	}
	mod := new(big.Int).Mod(raw, big.NewInt(snapshot))
	return mod.Int64() + 1
}

package dto

// CreateRaffleRequest 创建抽奖请求
type CreateRaffleRequest struct {
	CollateralContract string `json:"collateral_contract" binding:"required"`
	CollateralTokenID  string `json:"collateral_token_id" binding:"required"`
	MaxEntries         int64  `json:"max_entries" binding:"required"`
	TicketPrice        string `json:"ticket_price" binding:"required"`
	EntriesPerTicket   int64  `json:"entries_per_ticket" binding:"required"`
	PlatformFeeBps     int64  `json:"platform_fee_bps"`
	ExpiresAt          int64  `json:"expires_at" binding:"required"` // 毫秒时间戳
}

// BuyEntriesRequest 购票请求
type BuyEntriesRequest struct {
	TicketCount int64  `json:"ticket_count" binding:"required"`
	PaidAmount  string `json:"paid_amount" binding:"required"`
}

// GrantEntriesRequest 运营赠票请求
// 每个地址发一张权重 1 的票，重复地址重复计票
type GrantEntriesRequest struct {
	Recipients []string `json:"recipients" binding:"required,min=1,dive,required"`
}

// SettleEmergencyRequest 紧急结算请求
type SettleEmergencyRequest struct {
	RandomNumber string `json:"random_number" binding:"required"` // uint256 十进制
}

// ExtractCollateralRequest 手动取回押品请求
type ExtractCollateralRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

// ExtractFundsRequest 手动转出资金请求
type ExtractFundsRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/windfall-labs/windfall-raffle/internal/dto"
	"github.com/windfall-labs/windfall-raffle/internal/service"
)

// EntryHandler 票务账本处理器
type EntryHandler struct {
	svc service.EntryService
}

// NewEntryHandler 创建票务处理器
func NewEntryHandler(svc service.EntryService) *EntryHandler {
	return &EntryHandler{svc: svc}
}

// BuyEntries 购票
// POST /api/v1/raffles/:id/entries
func (h *EntryHandler) BuyEntries(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	var req dto.BuyEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	if err := h.svc.BuyEntries(c.Request.Context(), GetWallet(c), raffleID, req.TicketCount, req.PaidAmount); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// GrantEntries 运营赠票
// POST /api/v1/raffles/:id/entries/grant
func (h *EntryHandler) GrantEntries(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	var req dto.GrantEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	if err := h.svc.GrantFreeEntries(c.Request.Context(), GetWallet(c), raffleID, req.Recipients); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// ListEntries 查询购票账本
// GET /api/v1/raffles/:id/entries
func (h *EntryHandler) ListEntries(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	entries, err := h.svc.ListEntries(c.Request.Context(), raffleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, entries)
}

// GetClaim 查询当前买家的账户
// GET /api/v1/raffles/:id/claims/me
func (h *EntryHandler) GetClaim(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	claim, err := h.svc.GetClaim(c.Request.Context(), raffleID, GetWallet(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, claim)
}

// ClaimRefund 抽奖取消后领取退款
// POST /api/v1/raffles/:id/refund
func (h *EntryHandler) ClaimRefund(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	if err := h.svc.ClaimRefund(c.Request.Context(), GetWallet(c), raffleID); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/windfall-labs/windfall-raffle/internal/dto"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/internal/service"
)

// RaffleHandler 抽奖生命周期处理器
type RaffleHandler struct {
	svc service.RaffleService
}

// NewRaffleHandler 创建抽奖处理器
func NewRaffleHandler(svc service.RaffleService) *RaffleHandler {
	return &RaffleHandler{svc: svc}
}

// CreateRaffle 创建抽奖
// POST /api/v1/raffles
func (h *RaffleHandler) CreateRaffle(c *gin.Context) {
	var req dto.CreateRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	raffle, err := h.svc.CreateRaffle(c.Request.Context(), &service.CreateRaffleParams{
		Seller:             GetWallet(c),
		CollateralContract: req.CollateralContract,
		CollateralTokenID:  req.CollateralTokenID,
		MaxEntries:         req.MaxEntries,
		TicketPrice:        req.TicketPrice,
		EntriesPerTicket:   req.EntriesPerTicket,
		PlatformFeeBps:     req.PlatformFeeBps,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, raffle)
}

// GetRaffle 查询抽奖详情
// GET /api/v1/raffles/:id
func (h *RaffleHandler) GetRaffle(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	raffle, err := h.svc.GetRaffle(c.Request.Context(), raffleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, raffle)
}

// ListRaffles 查询卖家的抽奖列表
// GET /api/v1/raffles?seller=0x..&page=1&page_size=20
func (h *RaffleHandler) ListRaffles(c *gin.Context) {
	seller := c.Query("seller")
	if seller == "" {
		seller = GetWallet(c)
	}

	page := &repository.Pagination{Page: 1, PageSize: 20}
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page.Page = p
	}
	if ps, err := strconv.Atoi(c.Query("page_size")); err == nil && ps > 0 && ps <= 100 {
		page.PageSize = ps
	}

	raffles, err := h.svc.ListBySeller(c.Request.Context(), seller, page)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	SuccessWithPagination(c, raffles, page.Total, page.Page, page.PageSize)
}

// Close 到期关闭并发起开奖
// POST /api/v1/raffles/:id/close
func (h *RaffleHandler) Close(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	if err := h.svc.RequestClose(c.Request.Context(), GetWallet(c), raffleID); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// RetryClose 重试开奖请求
// POST /api/v1/raffles/:id/retry-close
func (h *RaffleHandler) RetryClose(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	if err := h.svc.RetryClose(c.Request.Context(), GetWallet(c), raffleID); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// EarlyCashout 卖家提前套现关闭
// POST /api/v1/raffles/:id/early-cashout
func (h *RaffleHandler) EarlyCashout(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	if err := h.svc.RequestEarlyCashout(c.Request.Context(), GetWallet(c), raffleID); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// Cancel 取消抽奖
// POST /api/v1/raffles/:id/cancel
func (h *RaffleHandler) Cancel(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), GetWallet(c), raffleID); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// ExtractCollateral 手动取回押品 (仅平台所有者)
// POST /api/v1/admin/raffles/:id/extract-collateral
func (h *RaffleHandler) ExtractCollateral(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	var req dto.ExtractCollateralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	if err := h.svc.ExtractCollateral(c.Request.Context(), GetWallet(c), raffleID, req.Recipient); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// ExtractFunds 手动转出资金 (仅平台所有者)
// POST /api/v1/admin/funds/extract
func (h *RaffleHandler) ExtractFunds(c *gin.Context) {
	var req dto.ExtractFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	if err := h.svc.ExtractFunds(c.Request.Context(), GetWallet(c), req.Recipient, req.Amount); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// parseRaffleID 解析路径中的抽奖 ID
func parseRaffleID(c *gin.Context) (int64, bool) {
	raffleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || raffleID <= 0 {
		Error(c, dto.ErrInvalidParams.WithMessage("invalid raffle id"))
		return 0, false
	}
	return raffleID, true
}

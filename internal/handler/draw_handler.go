package handler

import (
	"math/big"

	"github.com/gin-gonic/gin"

	"github.com/windfall-labs/windfall-raffle/internal/dto"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/internal/service"
)

// DrawHandler 开奖状态与紧急结算处理器
type DrawHandler struct {
	randomSvc  service.RandomnessService
	randomRepo repository.RandomnessRepository
}

// NewDrawHandler 创建开奖处理器
func NewDrawHandler(randomSvc service.RandomnessService, randomRepo repository.RandomnessRepository) *DrawHandler {
	return &DrawHandler{randomSvc: randomSvc, randomRepo: randomRepo}
}

// GetDraw 查询抽奖最近一次随机数请求状态
// GET /api/v1/raffles/:id/draw
func (h *DrawHandler) GetDraw(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	req, err := h.randomRepo.GetLatestByRaffle(c.Request.Context(), raffleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, req)
}

// SettleEmergency 紧急结算 (仅运营角色，预言机长期不回调时使用)
// POST /api/v1/admin/raffles/:id/settle-emergency
func (h *DrawHandler) SettleEmergency(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	var req dto.SettleEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	rawRandom, ok := new(big.Int).SetString(req.RandomNumber, 10)
	if !ok || rawRandom.Sign() < 0 {
		Error(c, dto.ErrInvalidParams.WithMessage("invalid random number"))
		return
	}

	if err := h.randomSvc.SettleEmergency(c.Request.Context(), GetWallet(c), raffleID, rawRandom); err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// Package router 提供路由注册
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/windfall-labs/windfall-raffle/internal/handler"
	"github.com/windfall-labs/windfall-raffle/internal/middleware"
)

// Router 路由管理器
type Router struct {
	engine *gin.Engine
}

// New 创建路由管理器
func New(engine *gin.Engine) *Router {
	return &Router{engine: engine}
}

// RegisterMiddleware 注册全局中间件
func (r *Router) RegisterMiddleware() {
	// 中间件链: Recovery → Logger
	r.engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
	)
}

// RegisterRoutes 注册路由
func (r *Router) RegisterRoutes(
	healthHandler *handler.HealthHandler,
	raffleHandler *handler.RaffleHandler,
	entryHandler *handler.EntryHandler,
	drawHandler *handler.DrawHandler,
) {
	// 健康检查 (无身份中间件)
	r.engine.GET("/health/live", healthHandler.Live)
	r.engine.GET("/health/ready", healthHandler.Ready)

	// Prometheus 监控端点
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.WalletAuth())

	// 抽奖生命周期
	raffles := v1.Group("/raffles")
	{
		raffles.POST("", raffleHandler.CreateRaffle)
		raffles.GET("", raffleHandler.ListRaffles)
		raffles.GET("/:id", raffleHandler.GetRaffle)
		raffles.POST("/:id/close", raffleHandler.Close)
		raffles.POST("/:id/retry-close", raffleHandler.RetryClose)
		raffles.POST("/:id/early-cashout", raffleHandler.EarlyCashout)
		raffles.POST("/:id/cancel", raffleHandler.Cancel)

		// 票务账本
		raffles.POST("/:id/entries", entryHandler.BuyEntries)
		raffles.GET("/:id/entries", entryHandler.ListEntries)
		raffles.POST("/:id/entries/grant", entryHandler.GrantEntries)
		raffles.GET("/:id/claims/me", entryHandler.GetClaim)
		raffles.POST("/:id/refund", entryHandler.ClaimRefund)

		// 开奖状态
		raffles.GET("/:id/draw", drawHandler.GetDraw)
	}

	// 运维通道 (所有者/运营权限在 service 层校验)
	admin := v1.Group("/admin")
	{
		admin.POST("/raffles/:id/extract-collateral", raffleHandler.ExtractCollateral)
		admin.POST("/funds/extract", raffleHandler.ExtractFunds)
		admin.POST("/raffles/:id/settle-emergency", drawHandler.SettleEmergency)
	}
}

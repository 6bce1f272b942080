// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/windfall-labs/windfall-raffle/internal/dto"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

const (
	// WalletHeader 钱包地址头名称
	// 地址校验由上游网关完成 (签名认证)，本服务只接收结果
	WalletHeader = "X-Wallet-Address"

	// WalletKey context 中的钱包地址键名
	WalletKey = "wallet"
)

// 钱包地址正则
var walletAddrRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// WalletAuth 返回钱包身份中间件
// 从请求头读取网关注入的钱包地址并写入 context
func WalletAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.GetHeader(WalletHeader)
		if wallet == "" {
			abortWithError(c, dto.ErrMissingAuthHeader)
			return
		}

		if !walletAddrRegex.MatchString(wallet) {
			abortWithError(c, dto.ErrInvalidWalletAddr)
			return
		}

		c.Set(WalletKey, strings.ToLower(wallet))
		c.Next()
	}
}

// Recovery 返回 panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("request panic recovered",
					"path", c.Request.URL.Path,
					"panic", r,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrInternalError))
			}
		}()
		c.Next()
	}
}

// Logger 返回访问日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// abortWithError 终止请求并返回业务错误
func abortWithError(c *gin.Context, err *dto.BizError) {
	c.AbortWithStatusJSON(err.HTTPStatus, dto.NewErrorResponse(err))
}

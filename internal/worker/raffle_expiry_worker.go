// Package worker 提供后台任务处理
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/pkg/lock"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// RaffleCloser 抽奖关闭接口
// 解耦 worker 和 service 包，避免循环依赖
type RaffleCloser interface {
	// RequestClose 到期关闭并发起开奖
	RequestClose(ctx context.Context, caller string, raffleID int64) error
}

// ExpiryWorkerConfig 到期扫描 Worker 配置
type ExpiryWorkerConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 30s
	BatchSize     int           // 每批处理数量，默认 100
	Operator      string        // 以运营身份发起关闭
}

// DefaultExpiryWorkerConfig 返回默认配置
func DefaultExpiryWorkerConfig(operator string) *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		CheckInterval: 30 * time.Second,
		BatchSize:     100,
		Operator:      operator,
	}
}

// RaffleExpiryWorker 到期扫描 Worker
// 定期扫描已过期仍在 ACCEPTED 状态的抽奖，代为发起关闭。
// 卖家也可以自己调用关闭接口，两条路径由抽奖独占锁串行化。
type RaffleExpiryWorker struct {
	cfg        *ExpiryWorkerConfig
	raffleRepo repository.RaffleRepository
	closer     RaffleCloser
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewRaffleExpiryWorker 创建到期扫描 Worker
func NewRaffleExpiryWorker(
	cfg *ExpiryWorkerConfig,
	raffleRepo repository.RaffleRepository,
	closer RaffleCloser,
) *RaffleExpiryWorker {
	if cfg == nil {
		cfg = DefaultExpiryWorkerConfig("")
	}
	return &RaffleExpiryWorker{
		cfg:        cfg,
		raffleRepo: raffleRepo,
		closer:     closer,
	}
}

// Start 启动 Worker
func (w *RaffleExpiryWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.checkLoop(ctx)

	logger.Info("raffle expiry worker started",
		"check_interval", w.cfg.CheckInterval,
		"batch_size", w.cfg.BatchSize,
	)
}

// Stop 停止 Worker
func (w *RaffleExpiryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("raffle expiry worker stopped")
}

// checkLoop 检查循环
func (w *RaffleExpiryWorker) checkLoop(ctx context.Context) {
	defer w.wg.Done()

	// 启动时立即执行一次
	w.processExpired(ctx)

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processExpired(ctx)
		}
	}
}

// processExpired 处理已过期的抽奖
func (w *RaffleExpiryWorker) processExpired(ctx context.Context) {
	now := time.Now().UnixMilli()

	raffles, err := w.raffleRepo.ListExpired(ctx, model.RaffleStatusAccepted, now, w.cfg.BatchSize)
	if err != nil {
		logger.Error("list expired raffles failed", "error", err)
		return
	}

	if len(raffles) == 0 {
		return
	}

	logger.Info("found expired raffles", "count", len(raffles))

	for _, raffle := range raffles {
		if err := w.closer.RequestClose(ctx, w.cfg.Operator, raffle.ID); err != nil {
			// 其他操作正持有该抽奖的锁，下个周期再扫
			if errors.Is(err, lock.ErrRaffleBusy) {
				continue
			}
			logger.Error("close expired raffle failed",
				"raffle_id", raffle.ID,
				"error", err,
			)
			continue
		}

		logger.Debug("expired raffle closed",
			"raffle_id", raffle.ID,
			"seller", raffle.Seller,
			"expires_at", raffle.ExpiresAt,
		)
	}
}

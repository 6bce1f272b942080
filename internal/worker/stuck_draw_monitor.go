package worker

import (
	"context"
	"sync"
	"time"

	"github.com/windfall-labs/windfall-raffle/internal/metrics"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// StuckDrawMonitorConfig 卡单监控配置
type StuckDrawMonitorConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 1m
	StuckAfter    time.Duration // 请求多久未回调算卡住，默认 10m
	BatchSize     int           // 每批上报数量，默认 100
}

// DefaultStuckDrawMonitorConfig 返回默认配置
func DefaultStuckDrawMonitorConfig() *StuckDrawMonitorConfig {
	return &StuckDrawMonitorConfig{
		CheckInterval: time.Minute,
		StuckAfter:    10 * time.Minute,
		BatchSize:     100,
	}
}

// StuckDrawMonitor 卡单监控
// 扫描发出后长期未回调的随机数请求并上报指标，
// 处置由运营通过紧急结算通道完成，监控本身不做自动恢复。
type StuckDrawMonitor struct {
	cfg        *StuckDrawMonitorConfig
	randomRepo repository.RandomnessRepository
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewStuckDrawMonitor 创建卡单监控
func NewStuckDrawMonitor(cfg *StuckDrawMonitorConfig, randomRepo repository.RandomnessRepository) *StuckDrawMonitor {
	if cfg == nil {
		cfg = DefaultStuckDrawMonitorConfig()
	}
	return &StuckDrawMonitor{
		cfg:        cfg,
		randomRepo: randomRepo,
	}
}

// Start 启动监控
func (m *StuckDrawMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.checkLoop(ctx)

	logger.Info("stuck draw monitor started",
		"check_interval", m.cfg.CheckInterval,
		"stuck_after", m.cfg.StuckAfter,
	)
}

// Stop 停止监控
func (m *StuckDrawMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	logger.Info("stuck draw monitor stopped")
}

// checkLoop 检查循环
func (m *StuckDrawMonitor) checkLoop(ctx context.Context) {
	defer m.wg.Done()

	m.scan(ctx)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

// scan 扫描一轮并上报指标
func (m *StuckDrawMonitor) scan(ctx context.Context) {
	threshold := time.Now().Add(-m.cfg.StuckAfter).UnixMilli()

	stuck, err := m.randomRepo.ListPendingBefore(ctx, threshold, m.cfg.BatchSize)
	if err != nil {
		logger.Error("list pending randomness requests failed", "error", err)
		return
	}

	metrics.StuckDrawsGauge.Set(float64(len(stuck)))

	for _, req := range stuck {
		logger.Warn("randomness request stuck",
			"request_id", req.RequestID,
			"raffle_id", req.RaffleID,
			"created_at", req.CreatedAt,
		)
	}
}

package service

import (
	"context"

	"github.com/windfall-labs/windfall-raffle/internal/cache"
	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// cachedRaffleService 带读缓存的抽奖服务装饰器
// 读路径走 Redis，本服务的写路径透传并在成功后失效缓存。
// 缓存故障只记日志，不影响业务结果。
//
// 购票和预言机结算不经过本装饰器 (分别走 EntryService 和
// RandomnessService)，这两类写入后缓存里的票数/状态可能短暂过期，
// 过期窗口由缓存 TTL 兜底。资金相关的读取都直连仓储，不受影响。
type cachedRaffleService struct {
	RaffleService
	cache *cache.RaffleCache
}

// NewCachedRaffleService 包装抽奖服务，为读路径增加 Redis 缓存
func NewCachedRaffleService(inner RaffleService, c *cache.RaffleCache) RaffleService {
	return &cachedRaffleService{RaffleService: inner, cache: c}
}

// GetRaffle 查询抽奖，优先命中缓存
func (s *cachedRaffleService) GetRaffle(ctx context.Context, raffleID int64) (*model.Raffle, error) {
	if cached, err := s.cache.GetRaffle(ctx, raffleID); err == nil && cached != nil {
		return cached, nil
	}

	raffle, err := s.RaffleService.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetRaffle(ctx, raffle, 0); err != nil {
		logger.Warn("cache raffle failed", "raffle_id", raffleID, "error", err)
	}
	return raffle, nil
}

// RequestClose 透传并失效缓存
func (s *cachedRaffleService) RequestClose(ctx context.Context, caller string, raffleID int64) error {
	if err := s.RaffleService.RequestClose(ctx, caller, raffleID); err != nil {
		return err
	}
	s.invalidate(ctx, raffleID)
	return nil
}

// RetryClose 透传并失效缓存
func (s *cachedRaffleService) RetryClose(ctx context.Context, caller string, raffleID int64) error {
	if err := s.RaffleService.RetryClose(ctx, caller, raffleID); err != nil {
		return err
	}
	s.invalidate(ctx, raffleID)
	return nil
}

// RequestEarlyCashout 透传并失效缓存
func (s *cachedRaffleService) RequestEarlyCashout(ctx context.Context, caller string, raffleID int64) error {
	if err := s.RaffleService.RequestEarlyCashout(ctx, caller, raffleID); err != nil {
		return err
	}
	s.invalidate(ctx, raffleID)
	return nil
}

// Cancel 透传并失效缓存
func (s *cachedRaffleService) Cancel(ctx context.Context, caller string, raffleID int64) error {
	if err := s.RaffleService.Cancel(ctx, caller, raffleID); err != nil {
		return err
	}
	s.invalidate(ctx, raffleID)
	return nil
}

func (s *cachedRaffleService) invalidate(ctx context.Context, raffleID int64) {
	if err := s.cache.InvalidateRaffle(ctx, raffleID); err != nil {
		logger.Warn("invalidate raffle cache failed", "raffle_id", raffleID, "error", err)
	}
}

// Package cache 提供抽奖数据的 Redis 读缓存
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

// Redis 缓存键格式
const (
	KeyRaffle  = "windfall:raffle:%d"         // raffle_id
	KeyEntries = "windfall:raffle:entries:%d" // raffle_id
)

// 默认 TTL
// 抽奖详情在购票高峰是读热点，写路径在每次变更后主动失效
const (
	DefaultRaffleTTL  = 10 * time.Second
	DefaultEntriesTTL = 30 * time.Second
)

// RaffleCache 抽奖读缓存
type RaffleCache struct {
	client redis.UniversalClient
}

// NewRaffleCache 创建抽奖读缓存
func NewRaffleCache(client redis.UniversalClient) *RaffleCache {
	return &RaffleCache{client: client}
}

// SetRaffle 缓存抽奖详情
func (c *RaffleCache) SetRaffle(ctx context.Context, raffle *model.Raffle, ttl time.Duration) error {
	key := fmt.Sprintf(KeyRaffle, raffle.ID)
	data, err := json.Marshal(raffle)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = DefaultRaffleTTL
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetRaffle 获取缓存的抽奖详情 (未命中返回 nil, nil)
func (c *RaffleCache) GetRaffle(ctx context.Context, raffleID int64) (*model.Raffle, error) {
	key := fmt.Sprintf(KeyRaffle, raffleID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var raffle model.Raffle
	if err := json.Unmarshal(data, &raffle); err != nil {
		return nil, err
	}
	return &raffle, nil
}

// InvalidateRaffle 失效抽奖详情缓存 (变更操作提交后调用)
func (c *RaffleCache) InvalidateRaffle(ctx context.Context, raffleID int64) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(KeyRaffle, raffleID))
	pipe.Del(ctx, fmt.Sprintf(KeyEntries, raffleID))
	_, err := pipe.Exec(ctx)
	return err
}

// SetEntries 缓存抽奖的购票记录列表
func (c *RaffleCache) SetEntries(ctx context.Context, raffleID int64, entries []*model.EntryRecord, ttl time.Duration) error {
	key := fmt.Sprintf(KeyEntries, raffleID)
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = DefaultEntriesTTL
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetEntries 获取缓存的购票记录列表 (未命中返回 nil, nil)
func (c *RaffleCache) GetEntries(ctx context.Context, raffleID int64) ([]*model.EntryRecord, error) {
	key := fmt.Sprintf(KeyEntries, raffleID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var entries []*model.EntryRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

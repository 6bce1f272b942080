// Package lock 提供基于 Redis 的抽奖互斥锁
//
// 每个抽奖的所有变更操作必须持有该抽奖的独占锁，
// 保证同一抽奖的操作串行执行，不同抽奖的操作可并发。
package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotHeld 锁未持有
	ErrLockNotHeld = errors.New("lock not held")
	// ErrRaffleBusy 抽奖正在被其他操作占用
	ErrRaffleBusy = errors.New("raffle is locked by another operation")
)

// RaffleLocker 抽奖锁管理器
type RaffleLocker struct {
	client     redis.UniversalClient
	keyPrefix  string
	expiration time.Duration
}

// NewRaffleLocker 创建抽奖锁管理器
func NewRaffleLocker(client redis.UniversalClient, keyPrefix string, expiration time.Duration) *RaffleLocker {
	if keyPrefix == "" {
		keyPrefix = "raffle:lock:"
	}
	if expiration == 0 {
		expiration = 30 * time.Second
	}
	return &RaffleLocker{
		client:     client,
		keyPrefix:  keyPrefix,
		expiration: expiration,
	}
}

// raffleLock 单个抽奖的独占锁
type raffleLock struct {
	client     redis.UniversalClient
	key        string
	value      string
	expiration time.Duration
}

func (l *RaffleLocker) newLock(raffleID int64) *raffleLock {
	return &raffleLock{
		client:     l.client,
		key:        l.keyPrefix + strconv.FormatInt(raffleID, 10),
		value:      uuid.New().String(),
		expiration: l.expiration,
	}
}

// acquire 获取锁 (非阻塞)
func (lock *raffleLock) acquire(ctx context.Context) (bool, error) {
	ok, err := lock.client.SetNX(ctx, lock.key, lock.value, lock.expiration).Result()
	if err != nil {
		return false, fmt.Errorf("acquire raffle lock failed: %w", err)
	}
	return ok, nil
}

// release 释放锁 (原子操作，只有持有者才能释放)
func (lock *raffleLock) release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, lock.client, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return fmt.Errorf("release raffle lock failed: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock 在抽奖独占锁保护下执行 fn
// 获取失败立即返回 ErrRaffleBusy，不阻塞等待
func (l *RaffleLocker) WithLock(ctx context.Context, raffleID int64, fn func(ctx context.Context) error) error {
	lock := l.newLock(raffleID)

	ok, err := lock.acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRaffleBusy
	}

	defer func() {
		// 释放锁，忽略错误 (可能已过期)
		_ = lock.release(ctx)
	}()

	return fn(ctx)
}

// WithLockWait 在抽奖独占锁保护下执行 fn (阻塞等待直到成功或 ctx 取消)
func (l *RaffleLocker) WithLockWait(ctx context.Context, raffleID int64, retryInterval time.Duration, fn func(ctx context.Context) error) error {
	lock := l.newLock(raffleID)

	for {
		ok, err := lock.acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}

	defer func() {
		_ = lock.release(ctx)
	}()

	return fn(ctx)
}

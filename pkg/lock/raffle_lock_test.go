package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) redis.UniversalClient {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRaffleLocker_WithLock_Success(t *testing.T) {
	client := setupRedis(t)
	locker := NewRaffleLocker(client, "test:lock:", 5*time.Second)

	executed := false
	err := locker.WithLock(context.Background(), 42, func(ctx context.Context) error {
		executed = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, executed)
}

func TestRaffleLocker_WithLock_Busy(t *testing.T) {
	client := setupRedis(t)
	locker := NewRaffleLocker(client, "test:lock:", 5*time.Second)
	ctx := context.Background()

	// 第一个持有者占住锁
	hold := locker.newLock(42)
	ok, err := hold.acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = locker.WithLock(ctx, 42, func(ctx context.Context) error {
		t.Fatal("should not execute while lock is held")
		return nil
	})

	assert.True(t, errors.Is(err, ErrRaffleBusy))
}

func TestRaffleLocker_WithLock_DifferentRaffles(t *testing.T) {
	client := setupRedis(t)
	locker := NewRaffleLocker(client, "test:lock:", 5*time.Second)
	ctx := context.Background()

	hold := locker.newLock(1)
	ok, err := hold.acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 不同抽奖的锁互不影响
	err = locker.WithLock(ctx, 2, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestRaffleLocker_ReleaseOnError(t *testing.T) {
	client := setupRedis(t)
	locker := NewRaffleLocker(client, "test:lock:", 5*time.Second)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := locker.WithLock(ctx, 7, func(ctx context.Context) error {
		return wantErr
	})
	assert.True(t, errors.Is(err, wantErr))

	// 错误路径也必须释放锁
	err = locker.WithLock(ctx, 7, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestRaffleLock_ReleaseOnlyByHolder(t *testing.T) {
	client := setupRedis(t)
	locker := NewRaffleLocker(client, "test:lock:", 5*time.Second)
	ctx := context.Background()

	first := locker.newLock(9)
	ok, err := first.acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 非持有者释放失败
	second := locker.newLock(9)
	err = second.release(ctx)
	assert.True(t, errors.Is(err, ErrLockNotHeld))

	// 持有者释放成功
	assert.NoError(t, first.release(ctx))
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

var (
	ErrRequestNotFound         = errors.New("randomness request not found")
	ErrRequestAlreadyFulfilled = errors.New("randomness request already fulfilled")
)

// RandomnessRepository 随机数请求仓储接口
type RandomnessRepository interface {
	// Create 记录一次随机数请求
	Create(ctx context.Context, req *model.RandomnessRequest) error

	// GetByRequestID 根据预言机请求 ID 查询
	GetByRequestID(ctx context.Context, requestID string) (*model.RandomnessRequest, error)

	// GetLatestByRaffle 查询抽奖最近一次请求
	GetLatestByRaffle(ctx context.Context, raffleID int64) (*model.RandomnessRequest, error)

	// MarkFulfilled 记录回调结果 (重复回调报错，调用方据此做幂等)
	MarkFulfilled(ctx context.Context, requestID string, rawRandom string) error

	// ListPendingBefore 查询早于阈值仍未回调的请求 (用于卡单监控)
	ListPendingBefore(ctx context.Context, createdBefore int64, limit int) ([]*model.RandomnessRequest, error)
}

// randomnessRepository 随机数请求仓储实现
type randomnessRepository struct {
	*Repository
}

// NewRandomnessRepository 创建随机数请求仓储
func NewRandomnessRepository(db *gorm.DB) RandomnessRepository {
	return &randomnessRepository{
		Repository: NewRepository(db),
	}
}

// Create 记录一次随机数请求
func (r *randomnessRepository) Create(ctx context.Context, req *model.RandomnessRequest) error {
	result := r.DB(ctx).Create(req)
	if result.Error != nil {
		return fmt.Errorf("create randomness request failed: %w", result.Error)
	}
	return nil
}

// GetByRequestID 根据预言机请求 ID 查询
func (r *randomnessRepository) GetByRequestID(ctx context.Context, requestID string) (*model.RandomnessRequest, error) {
	var req model.RandomnessRequest
	result := r.DB(ctx).Where("request_id = ?", requestID).First(&req)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get randomness request failed: %w", result.Error)
	}
	return &req, nil
}

// GetLatestByRaffle 查询抽奖最近一次请求
func (r *randomnessRepository) GetLatestByRaffle(ctx context.Context, raffleID int64) (*model.RandomnessRequest, error) {
	var req model.RandomnessRequest
	result := r.DB(ctx).
		Where("raffle_id = ?", raffleID).
		Order("created_at DESC").
		First(&req)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get latest randomness request failed: %w", result.Error)
	}
	return &req, nil
}

// MarkFulfilled 记录回调结果
func (r *randomnessRepository) MarkFulfilled(ctx context.Context, requestID string, rawRandom string) error {
	result := r.DB(ctx).Model(&model.RandomnessRequest{}).
		Where("request_id = ? AND fulfilled = ?", requestID, false).
		Updates(map[string]interface{}{
			"fulfilled":    true,
			"raw_random":   rawRandom,
			"fulfilled_at": nowMilli(),
		})

	if result.Error != nil {
		return fmt.Errorf("mark randomness request fulfilled failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// 区分不存在与重复回调
		if _, err := r.GetByRequestID(ctx, requestID); err != nil {
			return err
		}
		return ErrRequestAlreadyFulfilled
	}
	return nil
}

// ListPendingBefore 查询早于阈值仍未回调的请求
func (r *randomnessRepository) ListPendingBefore(ctx context.Context, createdBefore int64, limit int) ([]*model.RandomnessRequest, error) {
	var reqs []*model.RandomnessRequest
	if err := r.DB(ctx).
		Where("fulfilled = ? AND created_at < ?", false, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list pending randomness requests failed: %w", err)
	}
	return reqs, nil
}

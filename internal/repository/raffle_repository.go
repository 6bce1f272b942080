package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

var (
	ErrRaffleNotFound      = errors.New("raffle not found")
	ErrRaffleAlreadyExists = errors.New("raffle already exists")
	ErrStatusConflict      = errors.New("raffle status conflict")
	ErrCapacityExceeded    = errors.New("entries would exceed max entries")
)

// RaffleRepository 抽奖仓储接口
type RaffleRepository interface {
	// Create 创建抽奖
	Create(ctx context.Context, raffle *model.Raffle) error

	// GetByID 根据 ID 查询抽奖
	GetByID(ctx context.Context, id int64) (*model.Raffle, error)

	// UpdateStatus 乐观更新状态 (WHERE status = oldStatus)
	UpdateStatus(ctx context.Context, id int64, oldStatus, newStatus model.RaffleStatus) error

	// AddEntries 累加票数与筹集金额 (原子操作)
	// 仅在 ACCEPTED 状态下生效，且数据库侧再次校验容量上限
	AddEntries(ctx context.Context, id int64, entryDelta int64, amountDelta string) error

	// MarkSettled 记录结算结果并推进到终态
	// 仅当状态仍为 CLOSING_REQUESTED 时生效，保证结算至多执行一次
	MarkSettled(ctx context.Context, id int64, winner string, randomNumber int64, terminal model.RaffleStatus) error

	// SetEarlyCashout 标记提前套现关闭
	SetEarlyCashout(ctx context.Context, id int64) error

	// ListByStatus 按状态查询
	ListByStatus(ctx context.Context, status model.RaffleStatus, limit int) ([]*model.Raffle, error)

	// ListExpired 查询已过期且仍处于指定状态的抽奖
	ListExpired(ctx context.Context, status model.RaffleStatus, expireBefore int64, limit int) ([]*model.Raffle, error)

	// ListBySeller 查询卖家的抽奖列表
	ListBySeller(ctx context.Context, seller string, page *Pagination) ([]*model.Raffle, error)
}

// raffleRepository 抽奖仓储实现
type raffleRepository struct {
	*Repository
}

// NewRaffleRepository 创建抽奖仓储
func NewRaffleRepository(db *gorm.DB) RaffleRepository {
	return &raffleRepository{
		Repository: NewRepository(db),
	}
}

// Create 创建抽奖
func (r *raffleRepository) Create(ctx context.Context, raffle *model.Raffle) error {
	result := r.DB(ctx).Create(raffle)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrRaffleAlreadyExists
		}
		return fmt.Errorf("create raffle failed: %w", result.Error)
	}
	return nil
}

// GetByID 根据 ID 查询抽奖
func (r *raffleRepository) GetByID(ctx context.Context, id int64) (*model.Raffle, error) {
	var raffle model.Raffle
	result := r.DB(ctx).Where("id = ?", id).First(&raffle)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("get raffle by id failed: %w", result.Error)
	}
	return &raffle, nil
}

// UpdateStatus 乐观更新状态
func (r *raffleRepository) UpdateStatus(ctx context.Context, id int64, oldStatus, newStatus model.RaffleStatus) error {
	result := r.DB(ctx).Model(&model.Raffle{}).
		Where("id = ? AND status = ?", id, oldStatus).
		Updates(map[string]interface{}{
			"status":     newStatus,
			"updated_at": nowMilli(),
		})

	if result.Error != nil {
		return fmt.Errorf("update raffle status failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// AddEntries 累加票数与筹集金额 (原子操作)
func (r *raffleRepository) AddEntries(ctx context.Context, id int64, entryDelta int64, amountDelta string) error {
	sql := `UPDATE raffles
			SET entries_length = entries_length + ?,
				amount_raised = amount_raised + ?,
				updated_at = ?
			WHERE id = ? AND status = ? AND entries_length + ? <= max_entries`

	result := r.DB(ctx).Exec(sql,
		entryDelta, amountDelta, nowMilli(),
		id, model.RaffleStatusAccepted, entryDelta)

	if result.Error != nil {
		return fmt.Errorf("add entries failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCapacityExceeded
	}
	return nil
}

// MarkSettled 记录结算结果并推进到终态
func (r *raffleRepository) MarkSettled(ctx context.Context, id int64, winner string, randomNumber int64, terminal model.RaffleStatus) error {
	now := nowMilli()
	result := r.DB(ctx).Model(&model.Raffle{}).
		Where("id = ? AND status = ?", id, model.RaffleStatusClosingRequested).
		Updates(map[string]interface{}{
			"status":        terminal,
			"winner":        winner,
			"random_number": randomNumber,
			"settled_at":    now,
			"updated_at":    now,
		})

	if result.Error != nil {
		return fmt.Errorf("mark raffle settled failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SetEarlyCashout 标记提前套现关闭
func (r *raffleRepository) SetEarlyCashout(ctx context.Context, id int64) error {
	result := r.DB(ctx).Model(&model.Raffle{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"early_cashout": true,
			"updated_at":    nowMilli(),
		})

	if result.Error != nil {
		return fmt.Errorf("set early cashout failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRaffleNotFound
	}
	return nil
}

// ListByStatus 按状态查询
func (r *raffleRepository) ListByStatus(ctx context.Context, status model.RaffleStatus, limit int) ([]*model.Raffle, error) {
	var raffles []*model.Raffle
	if err := r.DB(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&raffles).Error; err != nil {
		return nil, fmt.Errorf("list raffles by status failed: %w", err)
	}
	return raffles, nil
}

// ListExpired 查询已过期且仍处于指定状态的抽奖
func (r *raffleRepository) ListExpired(ctx context.Context, status model.RaffleStatus, expireBefore int64, limit int) ([]*model.Raffle, error) {
	var raffles []*model.Raffle
	result := r.DB(ctx).
		Where("expires_at < ? AND status = ?", expireBefore, status).
		Order("expires_at ASC").
		Limit(limit).
		Find(&raffles)

	if result.Error != nil {
		return nil, fmt.Errorf("list expired raffles failed: %w", result.Error)
	}
	return raffles, nil
}

// ListBySeller 查询卖家的抽奖列表
func (r *raffleRepository) ListBySeller(ctx context.Context, seller string, page *Pagination) ([]*model.Raffle, error) {
	db := r.DB(ctx).Where("seller = ?", seller)

	if page != nil {
		var total int64
		if err := db.Model(&model.Raffle{}).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count raffles failed: %w", err)
		}
		page.Total = total
	}

	var raffles []*model.Raffle
	db = db.Order("created_at DESC")
	if page != nil {
		db = db.Offset(page.Offset()).Limit(page.Limit())
	}

	if err := db.Find(&raffles).Error; err != nil {
		return nil, fmt.Errorf("list raffles by seller failed: %w", err)
	}
	return raffles, nil
}

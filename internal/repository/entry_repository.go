package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

var (
	ErrEntryNotFound = errors.New("entry record not found")
)

// EntryRepository 购票记录仓储接口
// 记录只追加，永不修改或删除
type EntryRepository interface {
	// Append 追加一条购票记录
	Append(ctx context.Context, entry *model.EntryRecord) error

	// ListByRaffle 按插入顺序返回抽奖的全部购票记录
	ListByRaffle(ctx context.Context, raffleID int64) ([]*model.EntryRecord, error)

	// ListByBuyer 查询买家在某抽奖中的购票记录
	ListByBuyer(ctx context.Context, raffleID int64, buyer string) ([]*model.EntryRecord, error)

	// GetLast 返回抽奖最后一条购票记录 (用于推进前缀和)
	GetLast(ctx context.Context, raffleID int64) (*model.EntryRecord, error)

	// CountByRaffle 统计抽奖的购票记录条数
	CountByRaffle(ctx context.Context, raffleID int64) (int64, error)
}

// entryRepository 购票记录仓储实现
type entryRepository struct {
	*Repository
}

// NewEntryRepository 创建购票记录仓储
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{
		Repository: NewRepository(db),
	}
}

// Append 追加一条购票记录
func (r *entryRepository) Append(ctx context.Context, entry *model.EntryRecord) error {
	result := r.DB(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("append entry record failed: %w", result.Error)
	}
	return nil
}

// ListByRaffle 按插入顺序返回抽奖的全部购票记录
func (r *entryRepository) ListByRaffle(ctx context.Context, raffleID int64) ([]*model.EntryRecord, error) {
	var entries []*model.EntryRecord
	if err := r.DB(ctx).
		Where("raffle_id = ?", raffleID).
		Order("entry_index ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries by raffle failed: %w", err)
	}
	return entries, nil
}

// ListByBuyer 查询买家在某抽奖中的购票记录
func (r *entryRepository) ListByBuyer(ctx context.Context, raffleID int64, buyer string) ([]*model.EntryRecord, error) {
	var entries []*model.EntryRecord
	if err := r.DB(ctx).
		Where("raffle_id = ? AND buyer = ?", raffleID, buyer).
		Order("entry_index ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries by buyer failed: %w", err)
	}
	return entries, nil
}

// GetLast 返回抽奖最后一条购票记录
func (r *entryRepository) GetLast(ctx context.Context, raffleID int64) (*model.EntryRecord, error) {
	var entry model.EntryRecord
	result := r.DB(ctx).
		Where("raffle_id = ?", raffleID).
		Order("entry_index DESC").
		First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("get last entry failed: %w", result.Error)
	}
	return &entry, nil
}

// CountByRaffle 统计抽奖的购票记录条数
func (r *entryRepository) CountByRaffle(ctx context.Context, raffleID int64) (int64, error) {
	var count int64
	if err := r.DB(ctx).Model(&model.EntryRecord{}).
		Where("raffle_id = ?", raffleID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count entries failed: %w", err)
	}
	return count, nil
}

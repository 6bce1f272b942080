package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

// decimalFromString 解析十进制金额，非法输入按 0 处理
// 调用方传入的金额均由 decimal.Decimal.String() 生成
func decimalFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var (
	ErrClaimNotFound       = errors.New("claim account not found")
	ErrClaimAlreadyClaimed = errors.New("refund already claimed")
)

// ClaimRepository 买家账户仓储接口
type ClaimRepository interface {
	// AddTo 累加买家账户 (不存在则创建)
	AddTo(ctx context.Context, raffleID int64, buyer string, entries int64, amountSpent string) error

	// Get 查询买家账户
	Get(ctx context.Context, raffleID int64, buyer string) (*model.ClaimAccount, error)

	// ListByRaffle 查询抽奖的全部买家账户
	ListByRaffle(ctx context.Context, raffleID int64) ([]*model.ClaimAccount, error)

	// MarkClaimed 标记退款已认领 (幂等保护：已认领则报错)
	MarkClaimed(ctx context.Context, raffleID int64, buyer string) error
}

// claimRepository 买家账户仓储实现
type claimRepository struct {
	*Repository
}

// NewClaimRepository 创建买家账户仓储
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{
		Repository: NewRepository(db),
	}
}

// AddTo 累加买家账户
// 使用 upsert 保证 (raffle_id, buyer) 唯一，冲突时原子累加
func (r *claimRepository) AddTo(ctx context.Context, raffleID int64, buyer string, entries int64, amountSpent string) error {
	account := &model.ClaimAccount{
		RaffleID:    raffleID,
		Buyer:       buyer,
		Entries:     entries,
		AmountSpent: decimalFromString(amountSpent),
	}

	result := r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "raffle_id"}, {Name: "buyer"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"entries":      gorm.Expr("raffle_claims.entries + ?", entries),
			"amount_spent": gorm.Expr("raffle_claims.amount_spent + ?", amountSpent),
			"updated_at":   nowMilli(),
		}),
	}).Create(account)

	if result.Error != nil {
		return fmt.Errorf("add to claim account failed: %w", result.Error)
	}
	return nil
}

// Get 查询买家账户
func (r *claimRepository) Get(ctx context.Context, raffleID int64, buyer string) (*model.ClaimAccount, error) {
	var account model.ClaimAccount
	result := r.DB(ctx).Where("raffle_id = ? AND buyer = ?", raffleID, buyer).First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("get claim account failed: %w", result.Error)
	}
	return &account, nil
}

// ListByRaffle 查询抽奖的全部买家账户
func (r *claimRepository) ListByRaffle(ctx context.Context, raffleID int64) ([]*model.ClaimAccount, error) {
	var accounts []*model.ClaimAccount
	if err := r.DB(ctx).
		Where("raffle_id = ?", raffleID).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list claim accounts failed: %w", err)
	}
	return accounts, nil
}

// MarkClaimed 标记退款已认领
func (r *claimRepository) MarkClaimed(ctx context.Context, raffleID int64, buyer string) error {
	result := r.DB(ctx).Model(&model.ClaimAccount{}).
		Where("raffle_id = ? AND buyer = ? AND claimed = ?", raffleID, buyer, false).
		Updates(map[string]interface{}{
			"claimed":    true,
			"updated_at": nowMilli(),
		})

	if result.Error != nil {
		return fmt.Errorf("mark claim claimed failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// 区分不存在与重复认领
		if _, err := r.Get(ctx, raffleID, buyer); err != nil {
			return err
		}
		return ErrClaimAlreadyClaimed
	}
	return nil
}

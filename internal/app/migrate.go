package app

import (
	"gorm.io/gorm"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

// AutoMigrate 自动执行数据库迁移
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Raffle{},
		&model.EntryRecord{},
		&model.ClaimAccount{},
		&model.RandomnessRequest{},
	)
}

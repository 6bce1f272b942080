// Package main 提供数据库迁移命令行工具
package main

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/windfall-labs/windfall-raffle/internal/app"
	"github.com/windfall-labs/windfall-raffle/internal/config"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(&logger.Config{
		Level:       "info",
		Format:      "console",
		ServiceName: cfg.Service.Name,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Info),
	})
	if err != nil {
		logger.Fatal("open database failed", "error", err)
	}

	if err := app.AutoMigrate(db); err != nil {
		logger.Fatal("migration failed", "error", err)
	}

	logger.Info("migration completed",
		"database", cfg.Database.Database,
		"host", cfg.Database.Host,
	)
}

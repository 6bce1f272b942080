package main

import (
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
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := app.New(cfg).Run(); err != nil {
		logger.Fatal("application error", "error", err)
	}
}

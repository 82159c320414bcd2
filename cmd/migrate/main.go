package main

import (
	"context"
	"os"

	"github.com/bnbbuilders/tbnb-faucet/internal/config"
	"github.com/bnbbuilders/tbnb-faucet/internal/db/schema"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "cannot load config", "err", err)
		os.Exit(1)
	}

	log.Config(cfg.Log.Level, cfg.Log.Mode, os.Stdout)
	if cfg.Database.URL == "" {
		log.Error(ctx, config.EnvPrefix+"DATABASE_URL value is missing")
		os.Exit(1)
	}

	if err := schema.Migrate(cfg.Database.URL); err != nil {
		log.Error(ctx, "error migrating database", "err", err)
		os.Exit(1)
	}

	log.Info(ctx, "migration done!")
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnbbuilders/tbnb-faucet/internal/config"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/services"
	"github.com/bnbbuilders/tbnb-faucet/internal/db"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	"github.com/bnbbuilders/tbnb-faucet/internal/providers/blockchain"
	"github.com/bnbbuilders/tbnb-faucet/internal/repositories"
)

func main() {
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cfg.Sanitize(ctx); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent the reconciler to start", "err", err)
		os.Exit(1)
	}

	storage, err := db.NewStorage(ctx, cfg.Database.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = storage.Close() }()

	ethClient, err := blockchain.NewEthClient(ctx, cfg.Ethereum)
	if err != nil {
		log.Error(ctx, "cannot connect to the rpc node", "err", err)
		os.Exit(1)
	}
	defer ethClient.Close()

	payout, err := blockchain.NewPayout(ctx, cfg, ethClient)
	if err != nil {
		log.Error(ctx, "cannot create payout executor", "err", err)
		os.Exit(1)
	}

	reconciler := services.NewReconciler(repositories.NewCooldown(storage.Pgx), payout.Executor, cfg.Distribution.HoldTimeout)
	if *once {
		report, err := reconciler.ReconcileOnce(ctx)
		if err != nil {
			log.Error(ctx, "reconciliation failed", "err", err)
			os.Exit(1)
		}
		log.Info(ctx, "reconciliation done", "committed", report.Committed, "released", report.Released, "pending", report.Pending, "failed", report.Failed)
		return
	}

	log.Info(ctx, "reconciler started", "interval", cfg.Distribution.ReconcileInterval)
	reconciler.Run(ctx, cfg.Distribution.ReconcileInterval)
	log.Info(ctx, "reconciler stopped")
}

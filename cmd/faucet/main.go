package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnbbuilders/tbnb-faucet/internal/api"
	"github.com/bnbbuilders/tbnb-faucet/internal/buildinfo"
	"github.com/bnbbuilders/tbnb-faucet/internal/cache"
	"github.com/bnbbuilders/tbnb-faucet/internal/config"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/services"
	"github.com/bnbbuilders/tbnb-faucet/internal/db"
	"github.com/bnbbuilders/tbnb-faucet/internal/gateways"
	"github.com/bnbbuilders/tbnb-faucet/internal/health"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	"github.com/bnbbuilders/tbnb-faucet/internal/providers/blockchain"
	"github.com/bnbbuilders/tbnb-faucet/internal/repositories"
)


func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()
	log.Info(ctx, "starting tBNB faucet", "revision", buildinfo.Revision())

	if err := cfg.Sanitize(ctx); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent server to start", "err", err)
		os.Exit(1)
	}

	storage, err := db.NewStorage(ctx, cfg.Database.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = storage.Close() }()

	cachex, err := cache.NewCacheClient(ctx, cfg.Cache)
	if err != nil {
		log.Error(ctx, "cannot create cache", "err", err)
		os.Exit(1)
	}

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

	cooldowns := repositories.NewCooldown(storage.Pgx)
	github := gateways.NewGithub(gateways.GithubConfig{
		APIURL:            cfg.GitHub.APIURL,
		Token:             cfg.GitHub.Token,
		Timeout:           cfg.GitHub.Timeout,
		RetryMax:          cfg.GitHub.RetryMax,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Burst:             cfg.GitHub.Burst,
		CacheTTL:          cfg.GitHub.CacheTTL,
	}, cachex)

	verifier := services.NewVerifier(github, services.VerificationPolicy{
		MinAccountAgeDays: cfg.Verification.MinAccountAgeDays,
		MinPublicRepos:    cfg.Verification.MinPublicRepos,
	})
	gate := services.NewGate(cooldowns, services.GateConfig{
		CooldownWindow: cfg.Distribution.CooldownWindow,
		HoldTimeout:    cfg.Distribution.HoldTimeout,
	})
	distribution := services.NewDistribution(verifier, gate, payout.Executor, cfg.Distribution.HoldTimeout)

	if cfg.Distribution.ReconcileInline {
		reconciler := services.NewReconciler(cooldowns, payout.Executor, cfg.Distribution.HoldTimeout)
		go reconciler.Run(ctx, cfg.Distribution.ReconcileInterval)
	}

	healthMonitor := health.New(map[string]health.Ping{
		health.DB:    storage,
		health.Cache: cachex,
	})
	amount, _ := cfg.Ethereum.PayoutAmountWei()
	server := api.NewServer(distribution, healthMonitor, api.Info{
		Treasury:          payout.Executor.Treasury().Hex(),
		ChainID:           payout.ChainID.String(),
		AmountWei:         amount.String(),
		MinAccountAgeDays: cfg.Verification.MinAccountAgeDays,
		MinPublicRepos:    cfg.Verification.MinPublicRepos,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           server.Router(ctx, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, fmt.Sprintf("server started on port:%d", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "Starting http server", "err", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info(ctx, "Shutting down")
	cancel()

	// in-flight payouts run detached from the request. Anything still unresolved when the
	// timeout hits keeps its reservation and is left to the reconciler.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Distribution.ShutdownTimeout())
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutting down http server", "err", err)
	}
}

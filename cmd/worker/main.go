// Package main provides the standalone backfill worker entry point.
//
// The worker runs the same coordinator, queue and chunk pool as the API
// server but exposes no HTTP surface. It adopts chunk records left behind
// by a previous process and keeps sweeping for wallets whose backfill has
// not completed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/coordinator"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/normalize"
	"github.com/wallet-sync/internal/planner"
	"github.com/wallet-sync/internal/pricing"
	"github.com/wallet-sync/internal/provider"
	"github.com/wallet-sync/internal/queue"
	"github.com/wallet-sync/internal/retry"
	"github.com/wallet-sync/internal/storage"
	"github.com/wallet-sync/internal/valuation"
	"github.com/wallet-sync/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger().WithField("process", "worker")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	walletRepo := storage.NewWalletRepository(postgres)
	chunkRepo := storage.NewChunkRepository(postgres)
	coinRepo := storage.NewCoinRepository(postgres)
	txRepo := storage.NewTransactionRepository(clickhouse)

	providers := provider.NewRegistry(&cfg.Providers, logger)
	priceClient := pricing.NewClient(cfg.Pricing, logger)
	priceService := pricing.NewService(priceClient, coinRepo, redis.Client(), logger)
	valuator := valuation.NewValuator(priceService.Source())
	refresher := pricing.NewRefresher(priceService, coinRepo, cfg.Pricing.RefreshInterval, logger)

	chunkQueue := queue.New(chunkRepo, queue.Config{
		LeaseDuration:  cfg.Backfill.LeaseDuration,
		ReaperInterval: cfg.Backfill.ReaperInterval,
		MaxAttempts:    cfg.Backfill.MaxRetries,
		RetentionDays:  cfg.Backfill.RetentionDays,
	}, logger)

	coord := coordinator.New(walletRepo, planner.New(), chunkQueue, cfg.Backfill.MaxChunks, logger)

	chunkWorker := worker.NewChunkWorker(providers, normalize.NewRegistry(), valuator, txRepo, &retry.Config{
		MaxAttempts:  cfg.Backfill.MaxRetries,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}, logger)
	pool := worker.NewPool(chunkQueue, chunkWorker, cfg.Backfill.Workers, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord.Start(ctx)
	chunkQueue.StartReaper(ctx)
	pool.Start(ctx)
	refresher.Start(ctx)

	if err := coord.Sweep(ctx); err != nil {
		logger.WithError(err).Warn("Startup sweep failed")
	}

	logger.WithFields(map[string]interface{}{
		"workers":   cfg.Backfill.Workers,
		"maxChunks": cfg.Backfill.MaxChunks,
	}).Info("Worker started")

	ticker := time.NewTicker(cfg.Backfill.SweepInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := coord.Sweep(ctx); err != nil {
				logger.WithError(err).Warn("Coordinator sweep failed")
			}
		case <-quit:
			logger.Info("Shutting down worker...")
			cancel()
			pool.Wait()
			logger.Info("Worker exited")
			return
		}
	}
}

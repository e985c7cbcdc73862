// Package main provides the API server entry point for the wallet sync service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wallet-sync/internal/api"
	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/coordinator"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/normalize"
	"github.com/wallet-sync/internal/planner"
	"github.com/wallet-sync/internal/pricing"
	"github.com/wallet-sync/internal/provider"
	"github.com/wallet-sync/internal/queue"
	"github.com/wallet-sync/internal/retry"
	"github.com/wallet-sync/internal/service"
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
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Database connections
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

	// Repositories
	walletRepo := storage.NewWalletRepository(postgres)
	chunkRepo := storage.NewChunkRepository(postgres)
	coinRepo := storage.NewCoinRepository(postgres)
	streamRepo := storage.NewStreamRepository(postgres)
	txRepo := storage.NewTransactionRepository(clickhouse)
	cacheService := storage.NewCacheService(redis, logger)

	// Providers and pricing
	providers := provider.NewRegistry(&cfg.Providers, logger)
	priceClient := pricing.NewClient(cfg.Pricing, logger)
	priceService := pricing.NewService(priceClient, coinRepo, redis.Client(), logger)
	valuator := valuation.NewValuator(priceService.Source())
	refresher := pricing.NewRefresher(priceService, coinRepo, cfg.Pricing.RefreshInterval, logger)
	normalizers := normalize.NewRegistry()

	// Backfill machinery
	chunkQueue := queue.New(chunkRepo, queue.Config{
		LeaseDuration:  cfg.Backfill.LeaseDuration,
		ReaperInterval: cfg.Backfill.ReaperInterval,
		MaxAttempts:    cfg.Backfill.MaxRetries,
		RetentionDays:  cfg.Backfill.RetentionDays,
	}, logger)

	coord := coordinator.New(walletRepo, planner.New(), chunkQueue, cfg.Backfill.MaxChunks, logger)

	chunkWorker := worker.NewChunkWorker(providers, normalizers, valuator, txRepo, &retry.Config{
		MaxAttempts:  cfg.Backfill.MaxRetries,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}, logger)
	pool := worker.NewPool(chunkQueue, chunkWorker, cfg.Backfill.Workers, logger)

	// Services
	walletService := service.NewWalletService(walletRepo, txRepo, coinRepo, providers, valuator, cacheService, coord, logger)
	streamService := service.NewStreamService(streamRepo, logger)
	ingestService := service.NewIngestService(walletRepo, txRepo, coinRepo, normalizers, valuator, cacheService, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord.Start(ctx)
	chunkQueue.StartReaper(ctx)
	pool.Start(ctx)
	refresher.Start(ctx)

	// Re-drive unfinished wallets on startup, then keep sweeping.
	if err := coord.Sweep(ctx); err != nil {
		logger.WithError(err).Warn("Startup sweep failed")
	}
	go func() {
		ticker := time.NewTicker(cfg.Backfill.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := coord.Sweep(ctx); err != nil {
					logger.WithError(err).Warn("Coordinator sweep failed")
				}
			}
		}
	}()

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RatePerSecond:   cfg.RateLimit.RequestsPerSecond,
		RateBurst:       cfg.RateLimit.Burst,
		WebhookSecret:   cfg.Webhook.SharedSecret,
	}

	server := api.NewServer(serverConfig, walletService, streamService, ingestService, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("Server stopped")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	pool.Wait()

	logger.Info("Server exited")
}

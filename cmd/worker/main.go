package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rentora/backend/internal/config"
	"github.com/rentora/backend/internal/db"
	"github.com/rentora/backend/internal/events"
	"github.com/rentora/backend/internal/repositories"
	"github.com/rentora/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	listingRepo := repositories.NewListingRepo(pool)
	viewingRepo := repositories.NewViewingRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	notifier := events.NewEmitter(publisher, log)
	listingService := services.NewListingService(listingRepo, auditRepo, log)
	txService := services.NewTransactionService(txRepo, listingRepo, listingService, auditRepo, notifier, log)

	log.Info("worker started")

	expiryTicker := time.NewTicker(cfg.ListingExpiryInterval)
	staleTicker := time.NewTicker(cfg.StaleTxInterval)
	sweepTicker := time.NewTicker(cfg.ViewingSweepInterval)
	defer expiryTicker.Stop()
	defer staleTicker.Stop()
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			runListingExpiry(ctx, listingService, log)
		case <-staleTicker.C:
			runStaleTransactions(ctx, txService, cfg, log)
		case <-sweepTicker.C:
			runViewingSweep(ctx, viewingRepo, notifier, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		}
	}
}

func runListingExpiry(ctx context.Context, listingService *services.ListingService, log *zap.Logger) {
	n, err := listingService.ExpireOverdue(ctx)
	if err != nil {
		log.Error("listing expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired overdue listings", zap.Int("count", n))
	}
}

func runStaleTransactions(ctx context.Context, txService *services.TransactionService, cfg *config.Config, log *zap.Logger) {
	n, err := txService.CancelStale(ctx, cfg.StaleTxTimeoutSeconds)
	if err != nil {
		log.Error("stale transaction sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("cancelled stale transactions", zap.Int("count", n))
	}
}

func runViewingSweep(ctx context.Context, viewingRepo *repositories.ViewingRepo, notifier *events.Emitter, log *zap.Logger) {
	swept, err := viewingRepo.SweepPastRequested(ctx)
	if err != nil {
		log.Error("viewing sweep failed", zap.Error(err))
		return
	}
	for _, req := range swept {
		notifier.Notify(ctx, req.SeekerID, events.EventViewingCancelled, map[string]any{
			"request_id":   req.ID.String(),
			"cancelled_by": "system",
		})
	}
	if len(swept) > 0 {
		log.Info("cancelled past unanswered viewings", zap.Int("count", len(swept)))
	}
}

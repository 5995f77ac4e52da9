package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/config"
	"github.com/rentora/backend/internal/contractdoc"
	"github.com/rentora/backend/internal/db"
	"github.com/rentora/backend/internal/events"
	apphttp "github.com/rentora/backend/internal/http"
	"github.com/rentora/backend/internal/http/handlers"
	"github.com/rentora/backend/internal/repositories"
	"github.com/rentora/backend/internal/services"
	"github.com/rentora/backend/internal/stripe"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	listingRepo := repositories.NewListingRepo(pool)
	viewingRepo := repositories.NewViewingRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	contractRepo := repositories.NewContractRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	notifier := events.NewEmitter(publisher, log)
	deduper := events.NewRedisDeduper(rdb, cfg.WebhookDedupeTTL)

	// Services
	stripeClient := stripe.NewClient(cfg.StripeAPIBaseURL, cfg.StripeSecretKey, cfg.StripeTimeout, log)
	listingService := services.NewListingService(listingRepo, auditRepo, log)
	viewingService := services.NewViewingService(viewingRepo, listingRepo, auditRepo, notifier, log)
	txService := services.NewTransactionService(txRepo, listingRepo, listingService, auditRepo, notifier, log)
	contractService := services.NewContractService(contractRepo, txService,
		contractdoc.NewJSONRenderer(), contractdoc.NewFSStore(cfg.ContractArtifactDir),
		auditRepo, cfg.ContractTemplateKey, log)
	paymentService := services.NewPaymentService(paymentRepo, contractRepo, txService,
		stripeClient, deduper, auditRepo,
		cfg.StripeWebhookSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	listingHandler := handlers.NewListingHandler(listingService, log)
	viewingHandler := handlers.NewViewingHandler(viewingService, log)
	txHandler := handlers.NewTransactionHandler(txService, log)
	contractHandler := handlers.NewContractHandler(contractService, txService, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, txService, log)
	adminHandler := handlers.NewAdminHandler(auditRepo, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb,
		authHandler, listingHandler, viewingHandler, txHandler, contractHandler, paymentHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

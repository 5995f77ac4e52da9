package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/config"
	"github.com/rentora/backend/internal/http/handlers"
	"github.com/rentora/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	listingHandler *handlers.ListingHandler,
	viewingHandler *handlers.ViewingHandler,
	txHandler *handlers.TransactionHandler,
	contractHandler *handlers.ContractHandler,
	paymentHandler *handlers.PaymentHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, Stripe-Signature",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Provider webhook: public, authenticated by its signature header.
	app.Post("/webhooks/stripe", paymentHandler.StripeWebhook)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/token", authHandler.IssueToken)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", authHandler.GetMe)

	// Listings
	protected.Post("/listings", listingHandler.CreateListing)
	protected.Get("/listings", listingHandler.ListListings)
	protected.Get("/listings/:id", listingHandler.GetListing)
	protected.Put("/listings/:id/status", listingHandler.UpdateListingStatus)
	protected.Put("/listings/:id/expiry", listingHandler.UpdateListingExpiry)

	// Viewing slots
	protected.Post("/listings/:listingId/slots", viewingHandler.CreateSlot)
	protected.Get("/listings/:listingId/slots", viewingHandler.ListSlots)
	protected.Put("/slots/:id", viewingHandler.UpdateSlot)
	protected.Delete("/slots/:id", viewingHandler.DeleteSlot)

	// Viewing requests
	protected.Post("/viewings", viewingHandler.RequestViewing)
	protected.Get("/viewings", viewingHandler.ListRequests)
	protected.Post("/viewings/:id/confirm", viewingHandler.ConfirmViewing)
	protected.Post("/viewings/:id/reject", viewingHandler.RejectViewing)
	protected.Post("/viewings/:id/cancel", viewingHandler.CancelViewing)
	protected.Get("/viewings/:id/calendar.ics", viewingHandler.ExportCalendar)

	// Rental transactions
	protected.Post("/transactions", txHandler.StartTransaction)
	protected.Get("/transactions", txHandler.ListTransactions)
	protected.Get("/transactions/:id", txHandler.GetTransaction)
	protected.Post("/transactions/:id/move-in", txHandler.ConfirmMoveIn)
	protected.Post("/transactions/:id/complete", txHandler.CompleteTransaction)
	protected.Post("/transactions/:id/cancel", txHandler.CancelTransaction)
	protected.Post("/transactions/:id/dispute", txHandler.DisputeTransaction)

	// Contracts
	protected.Post("/transactions/:id/contract", contractHandler.GenerateContract)
	protected.Get("/transactions/:id/contract", contractHandler.GetLatestContract)
	protected.Get("/transactions/:id/contract/versions", contractHandler.ListContractVersions)
	protected.Post("/contracts/:id/sign", contractHandler.SignContract)
	protected.Get("/contracts/:id/signatures", contractHandler.ListSignatures)
	protected.Get("/contracts/:id/document", contractHandler.DownloadContractDocument)

	// Payments
	protected.Post("/transactions/:id/deposit/checkout", paymentHandler.StartDepositSession)
	protected.Post("/transactions/:id/deposit/cash", paymentHandler.MarkDepositPaidCash)
	protected.Get("/transactions/:id/payments", paymentHandler.ListPayments)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Get("/audit/:entityType/:entityId", adminHandler.GetAuditTrail)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/middleware"
	"github.com/rentora/backend/internal/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	txService      *services.TransactionService
	log            *zap.Logger
}

func NewPaymentHandler(paymentService *services.PaymentService, txService *services.TransactionService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, txService: txService, log: log}
}

func (h *PaymentHandler) StartDepositSession(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	tx, err := h.txService.GetForParticipant(c.Context(), txID, actorID, role)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	redirect, err := h.paymentService.StartDepositSession(c.Context(), tx, actorID, role)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.CheckoutResponse{
		PaymentID:   redirect.Payment.ID.String(),
		CheckoutURL: redirect.URL,
	}})
}

func (h *PaymentHandler) MarkDepositPaidCash(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	tx, err := h.txService.GetForParticipant(c.Context(), txID, actorID, role)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	payment, err := h.paymentService.MarkDepositPaidCash(c.Context(), tx, actorID, role)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: payment})
}

func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	tx, err := h.txService.GetForParticipant(c.Context(), txID, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	payments, err := h.paymentService.ListByTransaction(c.Context(), tx)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payments})
}

// StripeWebhook receives provider deliveries. Signature failures and
// malformed bodies are 400 so the provider stops retrying; an apply failure
// is 502 so it retries later.
func (h *PaymentHandler) StripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	if err := h.paymentService.ApplyProviderEvent(c.Context(), payload, signature); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

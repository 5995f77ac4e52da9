package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/middleware"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
	"github.com/rentora/backend/internal/services"
)

type TransactionHandler struct {
	txService *services.TransactionService
	log       *zap.Logger
}

func NewTransactionHandler(txService *services.TransactionService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{txService: txService, log: log}
}

func (h *TransactionHandler) StartTransaction(c *fiber.Ctx) error {
	var req dto.StartTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return badRequest(c, "invalid listing_id")
	}
	seekerID, err := uuid.Parse(req.SeekerID)
	if err != nil {
		return badRequest(c, "invalid seeker_id")
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	tx, err := h.txService.Start(c.Context(), actorID, role, seekerID, listingID,
		req.DepositAmount, req.RentAmount, req.Currency)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	tx, err := h.txService.GetForParticipant(c.Context(), id, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	filter := repositories.TransactionFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("listing_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid listing_id")
		}
		filter.ListingID = &id
	}

	// Non-admins only ever see their own side of the table.
	userID := middleware.GetUserID(c)
	switch middleware.GetUserRole(c) {
	case rbac.RoleSeeker:
		filter.SeekerUserID = &userID
	case rbac.RoleLandlord:
		filter.LandlordUserID = &userID
	}

	txs, err := h.txService.List(c.Context(), filter)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *TransactionHandler) ConfirmMoveIn(c *fiber.Ctx) error {
	return h.act(c, h.txService.ConfirmMoveIn)
}

func (h *TransactionHandler) CompleteTransaction(c *fiber.Ctx) error {
	return h.act(c, h.txService.Complete)
}

func (h *TransactionHandler) CancelTransaction(c *fiber.Ctx) error {
	return h.act(c, h.txService.Cancel)
}

func (h *TransactionHandler) DisputeTransaction(c *fiber.Ctx) error {
	return h.act(c, h.txService.Dispute)
}

// act loads the transaction for the caller and applies one state machine
// operation to it.
func (h *TransactionHandler) act(c *fiber.Ctx, op func(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string) error) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	tx, err := h.txService.GetForParticipant(c.Context(), id, actorID, role)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	if err := op(c.Context(), tx, actorID, role); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

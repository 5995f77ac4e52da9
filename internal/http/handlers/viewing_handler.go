package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/middleware"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
	"github.com/rentora/backend/internal/services"
)

type ViewingHandler struct {
	viewingService *services.ViewingService
	log            *zap.Logger
}

func NewViewingHandler(viewingService *services.ViewingService, log *zap.Logger) *ViewingHandler {
	return &ViewingHandler{viewingService: viewingService, log: log}
}

func (h *ViewingHandler) CreateSlot(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}

	var req dto.SlotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	pattern := req.Pattern
	if pattern == "" {
		pattern = models.SlotPatternNone
	}
	slot := &models.ViewingSlot{
		ListingID:  listingID,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		Capacity:   req.Capacity,
		Pattern:    pattern,
		DaysOfWeek: req.DaysOfWeek,
		TimeFrom:   req.TimeFrom,
		TimeTo:     req.TimeTo,
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	if err := h.viewingService.CreateSlot(c.Context(), actorID, role, slot); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: slot})
}

func (h *ViewingHandler) ListSlots(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}

	slots, err := h.viewingService.ListSlots(c.Context(), listingID)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: slots})
}

func (h *ViewingHandler) UpdateSlot(c *fiber.Ctx) error {
	slotID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid slot id")
	}

	var req dto.SlotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	slot, err := h.viewingService.GetSlot(c.Context(), slotID)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	slot.StartsAt = req.StartsAt
	slot.EndsAt = req.EndsAt
	slot.Capacity = req.Capacity
	if req.Pattern != "" {
		slot.Pattern = req.Pattern
	}
	slot.DaysOfWeek = req.DaysOfWeek
	slot.TimeFrom = req.TimeFrom
	slot.TimeTo = req.TimeTo
	if req.IsActive != nil {
		slot.IsActive = *req.IsActive
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	if err := h.viewingService.UpdateSlot(c.Context(), actorID, role, slot); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: slot})
}

func (h *ViewingHandler) DeleteSlot(c *fiber.Ctx) error {
	slotID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid slot id")
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	if err := h.viewingService.DeleteSlot(c.Context(), actorID, role, slotID); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *ViewingHandler) RequestViewing(c *fiber.Ctx) error {
	var req dto.RequestViewingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return badRequest(c, "invalid slot_id")
	}
	if req.ScheduledAt.IsZero() {
		return badRequest(c, "scheduled_at is required")
	}

	role := middleware.GetUserRole(c)
	if !rbac.HasPermission(role, rbac.PermRequestViewing) {
		return respondErr(c, h.log, apperr.Forbidden("only seekers can request viewings"))
	}

	seekerID := middleware.GetUserID(c)
	vr, err := h.viewingService.RequestSlot(c.Context(), seekerID, slotID, req.ScheduledAt, req.Message)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: vr})
}

func (h *ViewingHandler) ConfirmViewing(c *fiber.Ctx) error {
	return h.decide(c, h.viewingService.Confirm)
}

func (h *ViewingHandler) RejectViewing(c *fiber.Ctx) error {
	return h.decide(c, h.viewingService.Reject)
}

func (h *ViewingHandler) CancelViewing(c *fiber.Ctx) error {
	return h.decide(c, h.viewingService.Cancel)
}

// decide factors the confirm/reject/cancel handlers, which differ only in the
// service operation they invoke.
func (h *ViewingHandler) decide(c *fiber.Ctx, op func(ctx context.Context, actorID uuid.UUID, actorRole string, requestID uuid.UUID) (*models.ViewingRequest, error)) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid viewing request id")
	}

	vr, err := op(c.Context(), middleware.GetUserID(c), middleware.GetUserRole(c), requestID)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: vr})
}

func (h *ViewingHandler) ListRequests(c *fiber.Ctx) error {
	filter := repositories.ViewingRequestFilter{Limit: 20}

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
	if v := c.Query("slot_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid slot_id")
		}
		filter.SlotID = &id
	}
	if v := c.Query("listing_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid listing_id")
		}
		filter.ListingID = &id
	}
	if middleware.GetUserRole(c) == rbac.RoleSeeker {
		seekerID := middleware.GetUserID(c)
		filter.SeekerID = &seekerID
	}

	requests, err := h.viewingService.ListRequests(c.Context(), filter)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: requests})
}

func (h *ViewingHandler) ExportCalendar(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid viewing request id")
	}

	doc, err := h.viewingService.CalendarExport(c.Context(), middleware.GetUserID(c), requestID)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="viewing.ics"`)
	return c.SendString(doc)
}

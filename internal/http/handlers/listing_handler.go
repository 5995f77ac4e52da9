package handlers

import (
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

type ListingHandler struct {
	listingService *services.ListingService
	log            *zap.Logger
}

func NewListingHandler(listingService *services.ListingService, log *zap.Logger) *ListingHandler {
	return &ListingHandler{listingService: listingService, log: log}
}

func (h *ListingHandler) CreateListing(c *fiber.Ctx) error {
	var req dto.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	role := middleware.GetUserRole(c)
	if !rbac.HasPermission(role, rbac.PermManageListing) {
		return respondErr(c, h.log, apperr.Forbidden("only landlords can create listings"))
	}

	listing := &models.Listing{
		OwnerUserID: middleware.GetUserID(c),
		Title:       req.Title,
		Address:     req.Address,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.listingService.Create(c.Context(), listing); err != nil {
		return respondErr(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}

	listing, err := h.listingService.Get(c.Context(), id)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) ListListings(c *fiber.Ctx) error {
	filter := repositories.ListingFilter{Limit: 20}

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
	if c.Query("mine") == "true" {
		ownerID := middleware.GetUserID(c)
		filter.OwnerUserID = &ownerID
	}

	listings, err := h.listingService.List(c.Context(), filter)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listings})
}

func (h *ListingHandler) UpdateListingExpiry(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}

	var req dto.UpdateListingExpiryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	listing, err := h.listingService.UpdateExpiry(c.Context(),
		middleware.GetUserID(c), middleware.GetUserRole(c), id, req.ExpiresAt)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) UpdateListingStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}

	var req dto.UpdateListingStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Status == "" {
		return badRequest(c, "status is required")
	}

	listing, err := h.listingService.Get(c.Context(), id)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	if listing.OwnerUserID != actorID && !rbac.IsAdmin(role) {
		return respondErr(c, h.log, apperr.Forbidden("only the listing owner can change its status"))
	}

	if err := h.listingService.TransitionTo(c.Context(), listing, req.Status, &actorID, "user"); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/models"
)

// AuditReader reads back recorded audit entries.
type AuditReader interface {
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

// AdminHandler exposes operational endpoints for administrators.
type AdminHandler struct {
	audit AuditReader
	log   *zap.Logger
}

func NewAdminHandler(audit AuditReader, log *zap.Logger) *AdminHandler {
	return &AdminHandler{audit: audit, log: log}
}

// GetAuditTrail returns the audit entries recorded for one entity, newest
// first.
func (h *AdminHandler) GetAuditTrail(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID, err := uuid.Parse(c.Params("entityId"))
	if err != nil {
		return badRequest(c, "invalid entity id")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	entries, err := h.audit.GetByEntity(c.Context(), entityType, entityID, limit, offset)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

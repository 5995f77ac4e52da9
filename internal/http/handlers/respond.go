package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/middleware"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindPrecondition:
		return fiber.StatusUnprocessableEntity
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindExternal:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondErr translates a domain error into an HTTP response. Classified
// errors keep their machine code and status context; anything else is a 500
// with the details kept server-side.
func respondErr(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)

	var e *apperr.Error
	if errors.As(err, &e) {
		return c.Status(statusFor(e.Kind)).JSON(dto.ErrorResponse{
			Error:         e.Message,
			Code:          e.Code,
			CurrentStatus: e.CurrentStatus,
			RequestID:     reqID,
		})
	}

	log.Error("unhandled error",
		zap.String("request_id", reqID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error:     "internal error",
		RequestID: reqID,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: reqID})
}

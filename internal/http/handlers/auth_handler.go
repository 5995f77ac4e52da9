package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/auth"
	"github.com/rentora/backend/internal/config"
	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/middleware"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
)

// AuthHandler bridges the external identity provider. Token issuance here
// mirrors what the provider's claims would carry so the rest of the API can
// be exercised without it.
type AuthHandler struct {
	userRepo *repositories.UserRepo
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, cfg: cfg, log: log}
}

func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.AuthTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" {
		return badRequest(c, "email is required")
	}
	switch req.Role {
	case rbac.RoleLandlord, rbac.RoleSeeker, rbac.RoleAdmin:
	default:
		return badRequest(c, "role must be landlord, seeker or admin")
	}

	user, err := h.userRepo.UpsertByEmail(c.Context(), req.Email, req.FirstName, req.LastName, req.Role)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.JWTExpiration)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AuthResponse{Token: token, User: user}})
}

func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByID(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

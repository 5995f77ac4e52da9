package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/backend/internal/http/dto"
	"github.com/rentora/backend/internal/middleware"
	"github.com/rentora/backend/internal/services"
)

type ContractHandler struct {
	contractService *services.ContractService
	txService       *services.TransactionService
	log             *zap.Logger
}

func NewContractHandler(contractService *services.ContractService, txService *services.TransactionService, log *zap.Logger) *ContractHandler {
	return &ContractHandler{contractService: contractService, txService: txService, log: log}
}

func (h *ContractHandler) GenerateContract(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	var req dto.GenerateContractRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return badRequest(c, "invalid request")
	}

	actorID := middleware.GetUserID(c)
	role := middleware.GetUserRole(c)
	tx, err := h.txService.GetForParticipant(c.Context(), txID, actorID, role)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	contract, err := h.contractService.Generate(c.Context(), tx, actorID, role, req.Terms)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: contract})
}

func (h *ContractHandler) GetLatestContract(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	contract, err := h.contractService.GetLatest(c.Context(), txID, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: contract})
}

func (h *ContractHandler) ListContractVersions(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	contracts, err := h.contractService.ListVersions(c.Context(), txID, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: contracts})
}

func (h *ContractHandler) SignContract(c *fiber.Ctx) error {
	contractID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid contract id")
	}

	var req dto.SignContractRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Method == "" {
		req.Method = "click"
	}

	contract, err := h.contractService.Sign(c.Context(), contractID,
		middleware.GetUserID(c), middleware.GetUserRole(c),
		req.Method, c.IP(), c.Get(fiber.HeaderUserAgent), req.SignatureData)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: contract})
}

// DownloadContractDocument streams the rendered artifact for a contract
// version.
func (h *ContractHandler) DownloadContractDocument(c *fiber.Ctx) error {
	contractID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid contract id")
	}

	rc, contract, err := h.contractService.OpenDocument(c.Context(), contractID, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	// SendStream hands the reader to fasthttp, which closes it after the
	// response is written.
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("contract-%s-v%d.json", contract.TransactionID, contract.Version)))
	return c.SendStream(rc)
}

func (h *ContractHandler) ListSignatures(c *fiber.Ctx) error {
	contractID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid contract id")
	}

	sigs, err := h.contractService.ListSignatures(c.Context(), contractID, middleware.GetUserID(c), middleware.GetUserRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sigs})
}

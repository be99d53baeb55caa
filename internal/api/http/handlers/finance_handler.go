package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/claim-service/internal/api/dto"
	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/service"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// FinanceHandler serves the reimbursement queue and settlement actions.
type FinanceHandler struct {
	service *service.ClaimService
}

// NewFinanceHandler constructs handler.
func NewFinanceHandler(claimService *service.ClaimService) *FinanceHandler {
	return &FinanceHandler{service: claimService}
}

// List GET /api/claims/finance.
func (h *FinanceHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), 10)

	claims, total, err := h.service.ListForFinance(c.Context(), actor, c.Query("status"), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimListResponse(claims, total, page, pageSize)})
}

// Reimburse POST /api/claims/:id/reimburse.
func (h *FinanceHandler) Reimburse(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	claim, err := h.service.ReimburseClaim(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

// Reject POST /api/claims/:id/reject-finance.
func (h *FinanceHandler) Reject(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectRequest
	_ = c.BodyParser(&req)

	claim, err := h.service.FinanceRejectClaim(c.Context(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

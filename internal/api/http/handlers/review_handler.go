package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/claim-service/internal/api/dto"
	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/service"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// ReviewHandler serves the manager review queue and decisions.
type ReviewHandler struct {
	service *service.ClaimService
}

// NewReviewHandler constructs handler.
func NewReviewHandler(claimService *service.ClaimService) *ReviewHandler {
	return &ReviewHandler{service: claimService}
}

// List GET /api/claims/review.
func (h *ReviewHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), 10)

	claims, total, err := h.service.ListForReview(c.Context(), actor, c.Query("status"), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimListResponse(claims, total, page, pageSize)})
}

// Approve POST /api/claims/:id/approve.
func (h *ReviewHandler) Approve(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	claim, err := h.service.ApproveClaim(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

// Reject POST /api/claims/:id/reject.
func (h *ReviewHandler) Reject(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectRequest
	_ = c.BodyParser(&req)

	claim, err := h.service.RejectClaim(c.Context(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

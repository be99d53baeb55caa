package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/claim-service/internal/api/dto"
	"github.com/spec-kit/claim-service/internal/service"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// UsageHandler serves usage ledger administration: recompute, bulk
// reset and the reset audit trail.
type UsageHandler struct {
	usage *service.UsageService
}

// NewUsageHandler constructs handler.
func NewUsageHandler(usage *service.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// Recompute POST /api/usage/recompute/:id rebuilds one user's balance
// from their counted claims.
func (h *UsageHandler) Recompute(c *fiber.Ctx) error {
	userID := c.Params("id")
	total, err := h.usage.Recompute(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UsageRecomputeResponse{
		UserID: userID,
		Total:  total.String(),
	}})
}

// Reset POST /api/usage/reset zeroes usage counters, optionally for a
// single role.
func (h *UsageHandler) Reset(c *fiber.Ctx) error {
	var req dto.UsageResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Role != nil && !req.Role.IsValid() {
		return apperrors.NewValidationError("invalid role", map[string]any{"role": string(*req.Role)})
	}

	affected, err := h.usage.ResetAll(c.Context(), req.Role, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UsageResetResponse{UsersAffected: affected}})
}

// Resets GET /api/usage/resets lists recent bulk reset runs.
func (h *UsageHandler) Resets(c *fiber.Ctx) error {
	limit := parsePositiveInt(c.Query("limit"), 20)
	logs, err := h.usage.ResetHistory(c.Context(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.ResetLogResponse, 0, len(logs))
	for _, entry := range logs {
		items = append(items, dto.ResetLogResponse{
			ID:            entry.ID,
			RunAt:         entry.RunAt,
			UsersAffected: entry.UsersAffected,
			Note:          entry.Note,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

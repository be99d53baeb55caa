package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/api/dto"
	"github.com/spec-kit/claim-service/internal/service"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// UsersHandler serves per-user administration endpoints.
type UsersHandler struct {
	limits *service.LimitService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(limits *service.LimitService) *UsersHandler {
	return &UsersHandler{limits: limits}
}

// SetLimit PATCH /api/users/:id/limit. A null limit clears the
// personal override and the user falls back to role or global default.
func (h *UsersHandler) SetLimit(c *fiber.Ctx) error {
	var req dto.SetUserLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var limit *decimal.Decimal
	if req.Limit != nil {
		parsed, err := decimal.NewFromString(*req.Limit)
		if err != nil {
			return apperrors.NewValidationError("limit must be a number", map[string]any{"field": "limit"})
		}
		if parsed.IsNegative() {
			return apperrors.NewValidationError("limit must not be negative", map[string]any{"field": "limit"})
		}
		limit = &parsed
	}

	user, err := h.limits.SetUserOverride(c.Context(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	remaining, err := h.limits.Remaining(c.Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user), "remaining": remaining.String()})
}

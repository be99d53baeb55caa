package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/api/dto"
	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/service"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// ConfigHandler serves the limit configuration endpoints.
type ConfigHandler struct {
	limits *service.LimitService
}

// NewConfigHandler constructs handler.
func NewConfigHandler(limits *service.LimitService) *ConfigHandler {
	return &ConfigHandler{limits: limits}
}

// Get GET /api/config.
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.limits.GetConfig(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": limitConfigResponse(cfg)})
}

// SetDefaultLimit PATCH /api/config/default-limit.
func (h *ConfigHandler) SetDefaultLimit(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SetDefaultLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	limit, err := decimal.NewFromString(req.Limit)
	if err != nil || limit.IsNegative() {
		return apperrors.NewValidationError("limit must be a non-negative number", map[string]any{"field": "limit"})
	}

	cfg, err := h.limits.SetDefaultLimit(c.Context(), actor, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": limitConfigResponse(cfg)})
}

// SetRoleLimit PATCH /api/config/role-limit. A null limit removes the
// role entry.
func (h *ConfigHandler) SetRoleLimit(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SetRoleLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var limit *decimal.Decimal
	if req.Limit != nil {
		parsed, err := decimal.NewFromString(*req.Limit)
		if err != nil || parsed.IsNegative() {
			return apperrors.NewValidationError("limit must be a non-negative number", map[string]any{"field": "limit"})
		}
		limit = &parsed
	}

	cfg, err := h.limits.SetRoleLimit(c.Context(), actor, req.Role, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": limitConfigResponse(cfg)})
}

// SetResetCron PATCH /api/config/reset-cron.
func (h *ConfigHandler) SetResetCron(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SetResetCronRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	cfg, err := h.limits.SetResetCron(c.Context(), actor, req.Spec)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": limitConfigResponse(cfg)})
}

package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/domain"
	"github.com/spec-kit/claim-service/internal/service"
	"github.com/spec-kit/claim-service/internal/storage"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// ClaimsHandler serves the claim owner's endpoints. Creation and draft
// edits arrive as multipart forms carrying the receipt file.
type ClaimsHandler struct {
	service  *service.ClaimService
	receipts storage.ReceiptStore
}

// NewClaimsHandler constructs handler.
func NewClaimsHandler(claimService *service.ClaimService, receipts storage.ReceiptStore) *ClaimsHandler {
	return &ClaimsHandler{service: claimService, receipts: receipts}
}

// Create POST /api/claims.
func (h *ClaimsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	amount, err := parseAmount(c.FormValue("amount"))
	if err != nil {
		return err
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		return apperrors.NewValidationError("receipt file is required", map[string]any{"field": "receipt"})
	}
	attachment, ref, err := h.receipts.Save(file)
	if err != nil {
		return err
	}

	input := service.ClaimCreateInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Amount:      amount,
		Receipt:     ref,
		Attachment:  attachment,
		ReviewerID:  formValuePtr(c, "manager_id"),
		SubmitNow:   parseBool(c.FormValue("submit")),
	}
	claim, balance, err := h.service.CreateClaim(c.Context(), actor, input)
	if err != nil {
		_ = h.receipts.Remove(ref)
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":    claimResponse(claim),
		"balance": balanceResponse(balance),
	})
}

// List GET /api/claims.
func (h *ClaimsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), 10)

	claims, total, err := h.service.ListMine(c.Context(), actor, statuses, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimListResponse(claims, total, page, pageSize)})
}

// Get GET /api/claims/:id.
func (h *ClaimsHandler) Get(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	claim, err := h.service.GetClaim(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

// GetManager GET /api/claims/:id/manager.
func (h *ClaimsHandler) GetManager(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	manager, err := h.service.GetClaimManager(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(manager)})
}

// Update PATCH /api/claims/:id.
func (h *ClaimsHandler) Update(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var input service.ClaimUpdateInput
	if title := formValuePtr(c, "title"); title != nil {
		input.Title = title
	}
	if desc := formValuePtr(c, "description"); desc != nil {
		input.Description = desc
	}
	if raw := c.FormValue("amount"); raw != "" {
		amount, err := parseAmount(raw)
		if err != nil {
			return err
		}
		input.Amount = &amount
	}
	input.ReviewerID = formValuePtr(c, "manager_id")

	newRef := ""
	if file, err := c.FormFile("receipt"); err == nil && file != nil {
		attachment, ref, err := h.receipts.Save(file)
		if err != nil {
			return err
		}
		newRef = ref
		input.Receipt = &ref
		input.Attachment = attachment
	}

	claim, err := h.service.UpdateDraftClaim(c.Context(), actor, c.Params("id"), input)
	if err != nil {
		if newRef != "" {
			_ = h.receipts.Remove(newRef)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

// Delete DELETE /api/claims/:id.
func (h *ClaimsHandler) Delete(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.DeleteDraftClaim(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Submit POST /api/claims/:id/submit.
func (h *ClaimsHandler) Submit(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	claim, balance, err := h.service.SubmitClaim(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":    claimResponse(claim),
		"balance": balanceResponse(balance),
	})
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, apperrors.NewValidationError("amount is required", map[string]any{"field": "amount"})
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError("amount must be a number", map[string]any{"field": "amount"})
	}
	return amount, nil
}

func parseStatuses(raw string) ([]domain.ClaimStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var statuses []domain.ClaimStatus
	for _, part := range strings.Split(raw, ",") {
		status := domain.ClaimStatus(strings.TrimSpace(part))
		if !status.IsValid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": string(status)})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseBool(raw string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && parsed
}

func parsePositiveInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func formValuePtr(c *fiber.Ctx, key string) *string {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	if vals, ok := form.Value[key]; ok && len(vals) > 0 {
		val := vals[0]
		return &val
	}
	return nil
}

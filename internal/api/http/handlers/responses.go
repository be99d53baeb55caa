package handlers

import (
	"github.com/spec-kit/claim-service/internal/api/dto"
	"github.com/spec-kit/claim-service/internal/domain"
	"github.com/spec-kit/claim-service/internal/service"
)

func claimResponse(claim *domain.Claim) dto.ClaimResponse {
	resp := dto.ClaimResponse{
		ID:              claim.ID,
		OwnerID:         claim.OwnerID,
		OwnerRole:       claim.OwnerRole,
		ManagerID:       claim.ManagerID,
		Title:           claim.Title,
		Description:     claim.Description,
		Amount:          claim.Amount.String(),
		Receipt:         claim.Receipt,
		Status:          claim.Status,
		ManagerReviewer: claim.ManagerReviewer,
		FinanceReviewer: claim.FinanceReviewer,
		RejectionReason: claim.RejectionReason,
		CreatedAt:       claim.CreatedAt,
		UpdatedAt:       claim.UpdatedAt,
		SubmittedAt:     claim.SubmittedAt,
		ApprovedAt:      claim.ApprovedAt,
		RejectedAt:      claim.RejectedAt,
		ReimbursedAt:    claim.ReimbursedAt,
	}
	if claim.Attachment != nil {
		resp.Attachment = &dto.AttachmentResponse{
			OriginalName: claim.Attachment.OriginalName,
			FileName:     claim.Attachment.FileName,
			MimeType:     claim.Attachment.MimeType,
			SizeBytes:    claim.Attachment.SizeBytes,
		}
	}
	return resp
}

func claimListResponse(claims []domain.Claim, total int64, page, pageSize int) dto.ClaimListResponse {
	items := make([]dto.ClaimResponse, 0, len(claims))
	for i := range claims {
		items = append(items, claimResponse(&claims[i]))
	}
	return dto.ClaimListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}
}

func userResponse(user *domain.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		ManagerID:       user.ManagerID,
		UsedClaimAmount: user.UsedClaimAmount.String(),
		Active:          user.Active,
		LastLoginAt:     user.LastLoginAt,
		CreatedAt:       user.CreatedAt,
	}
	if user.ClaimLimit.Valid {
		limit := user.ClaimLimit.Decimal.String()
		resp.ClaimLimit = &limit
	}
	return resp
}

func balanceResponse(balance *service.ClaimBalance) *dto.BalanceResponse {
	if balance == nil {
		return nil
	}
	return &dto.BalanceResponse{
		EffectiveLimit: balance.EffectiveLimit.String(),
		Remaining:      balance.Remaining.String(),
	}
}

func limitConfigResponse(cfg *domain.LimitConfig) dto.LimitConfigResponse {
	roleLimits := make(map[string]string, len(cfg.RoleClaimLimits))
	for role, limit := range cfg.RoleClaimLimits {
		roleLimits[string(role)] = limit.String()
	}
	return dto.LimitConfigResponse{
		DefaultClaimLimit: cfg.DefaultClaimLimit.String(),
		RoleClaimLimits:   roleLimits,
		ResetCron:         cfg.ResetCron,
		UpdatedBy:         cfg.UpdatedBy,
		UpdatedAt:         cfg.UpdatedAt,
	}
}

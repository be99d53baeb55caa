package dto

import (
	"time"

	"github.com/spec-kit/claim-service/internal/domain"
)

// ClaimResponse is the public view of a claim.
type ClaimResponse struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"owner_id"`
	OwnerRole       domain.Role         `json:"owner_role"`
	ManagerID       *string             `json:"manager_id,omitempty"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Amount          string              `json:"amount"`
	Receipt         string              `json:"receipt"`
	Attachment      *AttachmentResponse `json:"attachment,omitempty"`
	Status          domain.ClaimStatus  `json:"status"`
	ManagerReviewer *string             `json:"manager_reviewer,omitempty"`
	FinanceReviewer *string             `json:"finance_reviewer,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	SubmittedAt     *time.Time          `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time          `json:"approved_at,omitempty"`
	RejectedAt      *time.Time          `json:"rejected_at,omitempty"`
	ReimbursedAt    *time.Time          `json:"reimbursed_at,omitempty"`
}

// AttachmentResponse describes the stored receipt file.
type AttachmentResponse struct {
	OriginalName string `json:"original_name"`
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
}

// BalanceResponse reports limit headroom alongside a claim mutation.
type BalanceResponse struct {
	EffectiveLimit string `json:"effective_limit"`
	Remaining      string `json:"remaining"`
}

// ClaimListResponse wraps a page of claims.
type ClaimListResponse struct {
	Items    []ClaimResponse `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// RejectRequest carries an optional rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

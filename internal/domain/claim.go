package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus enumerates lifecycle states for claims.
type ClaimStatus string

const (
	ClaimStatusDraft      ClaimStatus = "draft"
	ClaimStatusSubmitted  ClaimStatus = "submitted"
	ClaimStatusApproved   ClaimStatus = "approved"
	ClaimStatusRejected   ClaimStatus = "rejected"
	ClaimStatusReimbursed ClaimStatus = "reimbursed"
)

// ClaimStatuses lists every lifecycle state in workflow order.
func ClaimStatuses() []ClaimStatus {
	return []ClaimStatus{
		ClaimStatusDraft,
		ClaimStatusSubmitted,
		ClaimStatusApproved,
		ClaimStatusRejected,
		ClaimStatusReimbursed,
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusRejected || s == ClaimStatusReimbursed
}

// IsValid reports whether the status is a known lifecycle state.
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusDraft, ClaimStatusSubmitted, ClaimStatusApproved, ClaimStatusRejected, ClaimStatusReimbursed:
		return true
	}
	return false
}

// allowedTransitions is the claim status graph. No transition may skip
// or reverse a step; rejected and reimbursed are terminal.
var allowedTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusDraft:      {ClaimStatusSubmitted},
	ClaimStatusSubmitted:  {ClaimStatusApproved, ClaimStatusRejected},
	ClaimStatusApproved:   {ClaimStatusReimbursed, ClaimStatusRejected},
	ClaimStatusRejected:   {},
	ClaimStatusReimbursed: {},
}

// InvalidTransitionError reports a status graph violation.
type InvalidTransitionError struct {
	From ClaimStatus
	To   ClaimStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Attachment captures receipt file metadata stored with a claim.
type Attachment struct {
	OriginalName string
	FileName     string
	MimeType     string
	SizeBytes    int64
}

// Claim is the aggregate for one reimbursement request.
type Claim struct {
	ID      string
	OwnerID string
	// OwnerRole snapshots the owner's role at creation time; it decides
	// which approval rules apply for the claim's whole lifetime.
	OwnerRole Role
	// ManagerID is the reviewer snapshot captured at creation. Nil means
	// no assigned reviewer (admin-owned, or a manager claim awaiting
	// assignment); those are reviewable only by admins.
	ManagerID       *string
	Title           string
	Description     string
	Amount          decimal.Decimal
	Receipt         string
	Attachment      *Attachment
	Status          ClaimStatus
	// CountedInUsage is true iff this claim's amount is currently part
	// of the owner's usage-ledger balance. It guards the ledger against
	// double increments and double decrements across retries.
	CountedInUsage  bool
	ManagerReviewer *string
	FinanceReviewer *string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	ReimbursedAt    *time.Time
}

// CanTransitionTo reports whether next is reachable from the current status.
func (c *Claim) CanTransitionTo(next ClaimStatus) bool {
	for _, candidate := range allowedTransitions[c.Status] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the claim to next and stamps the matching
// timestamp. It touches only status and timestamps; usage-ledger side
// effects belong to the caller so the transition rule stays reusable.
func (c *Claim) TransitionTo(next ClaimStatus, now time.Time) error {
	if !c.CanTransitionTo(next) {
		return &InvalidTransitionError{From: c.Status, To: next}
	}
	c.Status = next
	switch next {
	case ClaimStatusSubmitted:
		c.SubmittedAt = &now
	case ClaimStatusApproved:
		c.ApprovedAt = &now
	case ClaimStatusRejected:
		c.RejectedAt = &now
	case ClaimStatusReimbursed:
		c.ReimbursedAt = &now
	}
	return nil
}

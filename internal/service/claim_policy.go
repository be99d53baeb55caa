package service

import (
	"github.com/spec-kit/claim-service/internal/domain"
)

// DenyReason codes explain why an action was refused. They are kept
// separate from the state machine so workflow rules and authorization
// rules stay independently testable.
type DenyReason string

const (
	DenyNone        DenyReason = ""
	DenyNotOwner    DenyReason = "not_owner"
	DenySelfReview  DenyReason = "self_review"
	DenyNotAssigned DenyReason = "not_assigned_reviewer"
	DenyRole        DenyReason = "insufficient_role"
)

// CanSubmit reports whether actor may submit the claim. Only the owner
// may submit.
func CanSubmit(actor *domain.User, claim *domain.Claim) (bool, DenyReason) {
	if claim.OwnerID != actor.ID {
		return false, DenyNotOwner
	}
	return true, DenyNone
}

// CanReview reports whether actor may approve or reject a submitted
// claim. Admins may review anything, including claims with no assigned
// reviewer. A manager may review only when the claim is not their own
// and they are either the owner's direct supervisor (employee claims)
// or the reviewer snapshotted on the claim (manager-to-manager chain).
func CanReview(actor *domain.User, claim *domain.Claim, owner *domain.User) (bool, DenyReason) {
	if actor.Role == domain.RoleAdmin {
		return true, DenyNone
	}
	if actor.Role != domain.RoleManager {
		return false, DenyRole
	}
	if claim.OwnerID == actor.ID {
		return false, DenySelfReview
	}
	if claim.OwnerRole == domain.RoleEmployee && owner != nil &&
		owner.ManagerID != nil && *owner.ManagerID == actor.ID {
		return true, DenyNone
	}
	if claim.ManagerID != nil && *claim.ManagerID == actor.ID {
		return true, DenyNone
	}
	return false, DenyNotAssigned
}

// CanSettle reports whether actor may reimburse or finance-reject an
// approved claim.
func CanSettle(actor *domain.User) (bool, DenyReason) {
	if actor.Role == domain.RoleFinance || actor.Role == domain.RoleAdmin {
		return true, DenyNone
	}
	return false, DenyRole
}

// CanView reports whether actor may read the claim: the owner, finance,
// admins, and any manager who could review it.
func CanView(actor *domain.User, claim *domain.Claim, owner *domain.User) (bool, DenyReason) {
	if claim.OwnerID == actor.ID {
		return true, DenyNone
	}
	if actor.Role == domain.RoleFinance || actor.Role == domain.RoleAdmin {
		return true, DenyNone
	}
	if actor.Role == domain.RoleManager {
		if ok, _ := CanReview(actor, claim, owner); ok {
			return true, DenyNone
		}
		return false, DenyNotAssigned
	}
	return false, DenyNotOwner
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role enumerates application roles in the approval chain.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleFinance  Role = "finance"
	RoleAdmin    Role = "admin"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleFinance, RoleAdmin}
}

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// CanOwnClaims reports whether users with this role may create claims.
// Finance users only process reimbursements; they never file claims.
func (r Role) CanOwnClaims() bool {
	return r == RoleEmployee || r == RoleManager || r == RoleAdmin
}

// User is the domain model for everyone in the approval chain.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	// ManagerID references the supervising manager. Required for
	// employees, optional for managers, absent for finance/admin.
	ManagerID *string
	// ClaimLimit is a personal override; when unset the effective limit
	// falls back to the role default, then the global default.
	ClaimLimit decimal.NullDecimal
	// UsedClaimAmount is the usage-ledger balance: the running total of
	// claim amounts currently counted against the limit. Mutated only
	// through the usage ledger.
	UsedClaimAmount decimal.Decimal
	Active          bool
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Remaining returns the headroom against the given effective limit,
// floored at zero. Always derived, never stored.
func (u *User) Remaining(effectiveLimit decimal.Decimal) decimal.Decimal {
	remaining := effectiveLimit.Sub(u.UsedClaimAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

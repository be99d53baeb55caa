package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LimitConfig is the singleton holding claim-limit defaults and the
// periodic usage reset policy. Read-mostly; mutated by finance/admin.
type LimitConfig struct {
	ID                string
	DefaultClaimLimit decimal.Decimal
	// RoleClaimLimits holds per-role defaults; a missing role falls back
	// to DefaultClaimLimit.
	RoleClaimLimits map[Role]decimal.Decimal
	// ResetCron is the cron expression for the periodic usage reset job;
	// empty disables the job.
	ResetCron string
	UpdatedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveLimitFor resolves the ceiling for a user: personal override
// first, then the role default, then the global default.
func (c *LimitConfig) EffectiveLimitFor(user *User) decimal.Decimal {
	if user.ClaimLimit.Valid {
		return user.ClaimLimit.Decimal
	}
	if limit, ok := c.RoleClaimLimits[user.Role]; ok {
		return limit
	}
	return c.DefaultClaimLimit
}

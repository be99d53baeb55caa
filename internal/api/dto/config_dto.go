package dto

import (
	"time"

	"github.com/spec-kit/claim-service/internal/domain"
)

// LimitConfigResponse is the public view of the limit configuration.
type LimitConfigResponse struct {
	DefaultClaimLimit string            `json:"default_claim_limit"`
	RoleClaimLimits   map[string]string `json:"role_claim_limits"`
	ResetCron         string            `json:"reset_cron,omitempty"`
	UpdatedBy         *string           `json:"updated_by,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// SetDefaultLimitRequest updates the global fallback limit.
type SetDefaultLimitRequest struct {
	Limit string `json:"limit"`
}

// SetRoleLimitRequest sets or clears one role's default limit; a null
// limit removes the role entry.
type SetRoleLimitRequest struct {
	Role  domain.Role `json:"role"`
	Limit *string     `json:"limit"`
}

// SetResetCronRequest updates the bulk reset schedule.
type SetResetCronRequest struct {
	Spec string `json:"spec"`
}

// UsageResetRequest scopes a manual bulk reset.
type UsageResetRequest struct {
	Role *domain.Role `json:"role"`
	Note string       `json:"note"`
}

// UsageResetResponse reports a completed bulk reset.
type UsageResetResponse struct {
	UsersAffected int64 `json:"users_affected"`
}

// UsageRecomputeResponse reports a rebuilt ledger balance.
type UsageRecomputeResponse struct {
	UserID string `json:"user_id"`
	Total  string `json:"total"`
}

// ResetLogResponse is one bulk reset audit entry.
type ResetLogResponse struct {
	ID            string    `json:"id"`
	RunAt         time.Time `json:"run_at"`
	UsersAffected int64     `json:"users_affected"`
	Note          string    `json:"note,omitempty"`
}

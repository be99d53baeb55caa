package dto

import (
	"time"

	"github.com/spec-kit/claim-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	ManagerID *string     `json:"manager_id"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of an account. Amounts travel as
// decimal strings.
type UserResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Role            domain.Role `json:"role"`
	ManagerID       *string     `json:"manager_id,omitempty"`
	ClaimLimit      *string     `json:"claim_limit,omitempty"`
	UsedClaimAmount string      `json:"used_claim_amount"`
	Active          bool        `json:"active"`
	LastLoginAt     *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// SetUserLimitRequest sets or clears a per-user limit override; a null
// limit removes the override.
type SetUserLimitRequest struct {
	Limit *string `json:"limit"`
}

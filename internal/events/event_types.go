package events

import (
	"time"

	"github.com/spec-kit/claim-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventClaimCreated       EventType = "claim_created"
	EventClaimStatusChanged EventType = "claim_status_changed"
	EventUsageRecomputed    EventType = "usage_recomputed"
	EventUsageReset         EventType = "usage_reset"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ClaimID   string      `json:"claim_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ClaimCreatedPayload payload.
type ClaimCreatedPayload struct {
	OwnerID   string             `json:"owner_id"`
	OwnerRole domain.Role        `json:"owner_role"`
	ManagerID *string            `json:"manager_id,omitempty"`
	Amount    string             `json:"amount"`
	Status    domain.ClaimStatus `json:"status"`
	Title     string             `json:"title"`
}

// ClaimStatusChangedPayload payload.
type ClaimStatusChangedPayload struct {
	OldStatus domain.ClaimStatus `json:"old_status"`
	NewStatus domain.ClaimStatus `json:"new_status"`
	Reason    string             `json:"reason,omitempty"`
}

// UsageRecomputedPayload payload.
type UsageRecomputedPayload struct {
	UserID string `json:"user_id"`
	Total  string `json:"total"`
}

// UsageResetPayload payload.
type UsageResetPayload struct {
	Role          *domain.Role `json:"role,omitempty"`
	UsersAffected int64        `json:"users_affected"`
	Note          string       `json:"note,omitempty"`
}

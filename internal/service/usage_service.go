package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/domain"
	"github.com/spec-kit/claim-service/internal/events"
	"github.com/spec-kit/claim-service/internal/repository"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// UsageService is the usage ledger: it owns every mutation of
// User.UsedClaimAmount. Increments and decrements are single atomic
// SQL updates, never read-modify-write.
type UsageService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUsageService builds the ledger service.
func NewUsageService(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger) *UsageService {
	return &UsageService{store: store, dispatcher: dispatcher, logger: logger}
}

// WithStore rebinds the ledger to another store, typically a
// transaction-bound one, so ledger mutations commit or roll back with
// the claim transition they belong to.
func (s *UsageService) WithStore(store repository.Store) *UsageService {
	return &UsageService{store: store, dispatcher: s.dispatcher, logger: s.logger}
}

// Increment adds amount to the user's counter. Amounts <= 0 are a no-op.
func (s *UsageService) Increment(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return s.store.Users().AddUsed(ctx, userID, amount)
}

// IncrementWithinLimit adds amount only while the counter stays within
// limit, in one conditional update. Returns false when the add would
// exceed the limit. Amounts <= 0 are a no-op that always fits.
func (s *UsageService) IncrementWithinLimit(ctx context.Context, userID string, amount, limit decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return true, nil
	}
	return s.store.Users().AddUsedWithinLimit(ctx, userID, amount, limit)
}

// Decrement subtracts amount from the user's counter, clamping at
// zero. Amounts <= 0 are a no-op.
func (s *UsageService) Decrement(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return s.store.Users().SubtractUsed(ctx, userID, amount)
}

// Recompute rebuilds the counter from the user's claims with a status
// that counts against usage, honoring the latest bulk reset as a
// cutoff so a reset stays forgotten. Returns the recomputed total.
func (s *UsageService) Recompute(ctx context.Context, userID string) (decimal.Decimal, error) {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return decimal.Zero, apperrors.MapError(err)
	}

	cutoff, err := s.LatestResetAt(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := s.store.Claims().SumCountedSince(ctx, userID, cutoff)
	if err != nil {
		return decimal.Zero, apperrors.MapError(err)
	}
	if err := s.store.Users().SetUsed(ctx, userID, total); err != nil {
		return decimal.Zero, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventUsageRecomputed,
		ActorID: userID,
		Payload: events.UsageRecomputedPayload{UserID: userID, Total: total.String()},
	})
	return total, nil
}

// ResetAll zeroes counters for every user, or only users of the given
// role, and records the run. Claim countedInUsage flags are left
// untouched; the reset log cutoff keeps recompute and late rejections
// from resurrecting forgotten balances.
func (s *UsageService) ResetAll(ctx context.Context, role *domain.Role, note string) (int64, error) {
	if role != nil && !role.IsValid() {
		return 0, apperrors.NewValidationError("unknown role", map[string]any{"role": string(*role)})
	}

	var affected int64
	err := s.store.InTx(ctx, func(st repository.Store) error {
		n, err := st.Users().ResetUsed(ctx, role)
		if err != nil {
			return err
		}
		affected = n
		return st.ResetLogs().Create(ctx, &domain.UsageResetLog{
			RunAt:         time.Now(),
			UsersAffected: n,
			Note:          note,
		})
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	if s.logger != nil {
		s.logger.Info("usage counters reset", zap.Int64("users_affected", affected))
	}
	s.publish(ctx, events.Event{
		Type:    events.EventUsageReset,
		Payload: events.UsageResetPayload{Role: role, UsersAffected: affected, Note: note},
	})
	return affected, nil
}

// LatestResetAt returns the time of the newest bulk reset, or nil when
// none has ever run.
func (s *UsageService) LatestResetAt(ctx context.Context) (*time.Time, error) {
	log, err := s.store.ResetLogs().Latest(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return &log.RunAt, nil
}

// ResetHistory lists recent bulk reset runs.
func (s *UsageService) ResetHistory(ctx context.Context, limit int) ([]domain.UsageResetLog, error) {
	logs, err := s.store.ResetLogs().ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return logs, nil
}

func (s *UsageService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

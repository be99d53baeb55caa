package repository

import (
	"context"

	"github.com/spec-kit/claim-service/internal/domain"
)

// ResetLogRepository persists bulk usage reset runs. The newest entry
// doubles as the recompute cutoff.
type ResetLogRepository interface {
	Create(ctx context.Context, log *domain.UsageResetLog) error
	// Latest returns the most recent run, or pgx.ErrNoRows when no
	// reset has ever happened.
	Latest(ctx context.Context) (*domain.UsageResetLog, error)
	ListRecent(ctx context.Context, limit int) ([]domain.UsageResetLog, error)
}

type resetLogRepository struct {
	q Querier
}

// NewResetLogRepository instantiates repository.
func NewResetLogRepository(q Querier) ResetLogRepository {
	return &resetLogRepository{q: q}
}

func (r *resetLogRepository) Create(ctx context.Context, log *domain.UsageResetLog) error {
	const query = `
        INSERT INTO usage_reset_logs (run_at, users_affected, note)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return r.q.QueryRow(ctx, query, log.RunAt, log.UsersAffected, log.Note).
		Scan(&log.ID, &log.CreatedAt)
}

func (r *resetLogRepository) Latest(ctx context.Context) (*domain.UsageResetLog, error) {
	const query = `
        SELECT id, run_at, users_affected, note, created_at
        FROM usage_reset_logs ORDER BY run_at DESC LIMIT 1`
	var log domain.UsageResetLog
	if err := r.q.QueryRow(ctx, query).Scan(
		&log.ID,
		&log.RunAt,
		&log.UsersAffected,
		&log.Note,
		&log.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *resetLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.UsageResetLog, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, run_at, users_affected, note, created_at
        FROM usage_reset_logs ORDER BY run_at DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UsageResetLog
	for rows.Next() {
		var log domain.UsageResetLog
		if err := rows.Scan(&log.ID, &log.RunAt, &log.UsersAffected, &log.Note, &log.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	return result, rows.Err()
}

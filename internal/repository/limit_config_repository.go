package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/domain"
)

// LimitConfigRepository persists the singleton limit configuration.
// Lazy initialization on first read belongs to the service layer; Get
// surfaces pgx.ErrNoRows when the row does not exist yet.
type LimitConfigRepository interface {
	Get(ctx context.Context) (*domain.LimitConfig, error)
	Create(ctx context.Context, cfg *domain.LimitConfig) error
	Update(ctx context.Context, cfg *domain.LimitConfig) error
}

type limitConfigRepository struct {
	q Querier
}

// NewLimitConfigRepository instantiates repository.
func NewLimitConfigRepository(q Querier) LimitConfigRepository {
	return &limitConfigRepository{q: q}
}

func (r *limitConfigRepository) Get(ctx context.Context) (*domain.LimitConfig, error) {
	const query = `
        SELECT id, default_claim_limit, role_claim_limits, reset_cron, updated_by, created_at, updated_at
        FROM limit_config ORDER BY created_at LIMIT 1`
	var cfg domain.LimitConfig
	var roleLimits []byte
	if err := r.q.QueryRow(ctx, query).Scan(
		&cfg.ID,
		&cfg.DefaultClaimLimit,
		&roleLimits,
		&cfg.ResetCron,
		&cfg.UpdatedBy,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	cfg.RoleClaimLimits = map[domain.Role]decimal.Decimal{}
	if len(roleLimits) > 0 {
		if err := json.Unmarshal(roleLimits, &cfg.RoleClaimLimits); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (r *limitConfigRepository) Create(ctx context.Context, cfg *domain.LimitConfig) error {
	roleLimits, err := marshalRoleLimits(cfg.RoleClaimLimits)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO limit_config (default_claim_limit, role_claim_limits, reset_cron, updated_by)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		cfg.DefaultClaimLimit,
		roleLimits,
		cfg.ResetCron,
		cfg.UpdatedBy,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
}

func (r *limitConfigRepository) Update(ctx context.Context, cfg *domain.LimitConfig) error {
	roleLimits, err := marshalRoleLimits(cfg.RoleClaimLimits)
	if err != nil {
		return err
	}
	const query = `
        UPDATE limit_config SET default_claim_limit=$1, role_claim_limits=$2, reset_cron=$3,
            updated_by=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.q.Exec(ctx, query,
		cfg.DefaultClaimLimit,
		roleLimits,
		cfg.ResetCron,
		cfg.UpdatedBy,
		cfg.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func marshalRoleLimits(limits map[domain.Role]decimal.Decimal) ([]byte, error) {
	if limits == nil {
		limits = map[domain.Role]decimal.Decimal{}
	}
	return json.Marshal(limits)
}

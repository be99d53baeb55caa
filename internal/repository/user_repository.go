package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/domain"
)

// UserRepository defines persistence access for users, including the
// atomic usage-counter operations the ledger relies on.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetClaimLimit(ctx context.Context, id string, limit decimal.NullDecimal) error
	TouchLogin(ctx context.Context, id string, at time.Time) error

	// AddUsed atomically adds amount to used_claim_amount.
	AddUsed(ctx context.Context, id string, amount decimal.Decimal) error
	// AddUsedWithinLimit adds amount only while the result stays within
	// limit; returns false when the conditional update matched no row.
	// This single statement is what keeps concurrent submits from both
	// passing a stale limit check.
	AddUsedWithinLimit(ctx context.Context, id string, amount, limit decimal.Decimal) (bool, error)
	// SubtractUsed atomically subtracts amount, clamping at zero.
	SubtractUsed(ctx context.Context, id string, amount decimal.Decimal) error
	// SetUsed overwrites the counter (recompute).
	SetUsed(ctx context.Context, id string, amount decimal.Decimal) error
	// ResetUsed zeroes counters for all users, or users of one role,
	// returning the number of affected rows.
	ResetUsed(ctx context.Context, role *domain.Role) (int64, error)
}

type userRepository struct {
	q Querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(q Querier) UserRepository {
	return &userRepository{q: q}
}

const userColumns = `id, name, email, password_hash, role, manager_user_id, claim_limit,
               used_claim_amount, active, last_login_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, manager_user_id, claim_limit, used_claim_amount, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	return r.q.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.ManagerID,
		user.ClaimLimit,
		user.UsedClaimAmount,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, role=$4, manager_user_id=$5,
            claim_limit=$6, active=$7, updated_at=NOW()
        WHERE id=$8`

	cmd, err := r.q.Exec(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.ManagerID,
		user.ClaimLimit,
		user.Active,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.q.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.ManagerID,
		&user.ClaimLimit,
		&user.UsedClaimAmount,
		&user.Active,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) SetClaimLimit(ctx context.Context, id string, limit decimal.NullDecimal) error {
	const query = `UPDATE users SET claim_limit=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.q.Exec(ctx, query, limit, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login_at=$1 WHERE id=$2`
	_, err := r.q.Exec(ctx, query, at, id)
	return err
}

func (r *userRepository) AddUsed(ctx context.Context, id string, amount decimal.Decimal) error {
	const query = `
        UPDATE users SET used_claim_amount = used_claim_amount + $1, updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) AddUsedWithinLimit(ctx context.Context, id string, amount, limit decimal.Decimal) (bool, error) {
	const query = `
        UPDATE users SET used_claim_amount = used_claim_amount + $1, updated_at=NOW()
        WHERE id=$2 AND used_claim_amount + $1 <= $3`
	cmd, err := r.q.Exec(ctx, query, amount, id, limit)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *userRepository) SubtractUsed(ctx context.Context, id string, amount decimal.Decimal) error {
	const query = `
        UPDATE users SET used_claim_amount = GREATEST(used_claim_amount - $1, 0), updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetUsed(ctx context.Context, id string, amount decimal.Decimal) error {
	const query = `UPDATE users SET used_claim_amount=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ResetUsed(ctx context.Context, role *domain.Role) (int64, error) {
	if role != nil {
		const query = `UPDATE users SET used_claim_amount=0, updated_at=NOW() WHERE role=$1`
		cmd, err := r.q.Exec(ctx, query, *role)
		if err != nil {
			return 0, err
		}
		return cmd.RowsAffected(), nil
	}
	const query = `UPDATE users SET used_claim_amount=0, updated_at=NOW()`
	cmd, err := r.q.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations shared by pools and
// transactions, so repositories run unchanged inside either.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles repositories with transaction control. Claim status
// transitions and their matching ledger mutations must run inside a
// single InTx call so a partial failure rolls both back.
type Store interface {
	Users() UserRepository
	Claims() ClaimRepository
	LimitConfig() LimitConfigRepository
	ResetLogs() ResetLogRepository
	InTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	q    Querier
	inTx bool
}

// NewStore returns a Postgres-backed store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, q: pool}
}

func (s *pgStore) Users() UserRepository {
	return NewUserRepository(s.q)
}

func (s *pgStore) Claims() ClaimRepository {
	return NewClaimRepository(s.q)
}

func (s *pgStore) LimitConfig() LimitConfigRepository {
	return NewLimitConfigRepository(s.q)
}

func (s *pgStore) ResetLogs() ResetLogRepository {
	return NewResetLogRepository(s.q)
}

// InTx runs fn against transaction-bound repositories, committing on
// success and rolling back on error. Nested calls reuse the open
// transaction instead of starting a second one.
func (s *pgStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if s.pool == nil {
		return ErrNoPool
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txStore := &pgStore{q: tx, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ErrNoPool signals operations attempted without a configured database.
var ErrNoPool = errors.New("postgres pool not configured")

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/domain"
	"github.com/spec-kit/claim-service/internal/repository"
)

// fakeStore is an in-memory Store for service tests. Ledger mutations
// mirror the conditional-update semantics of the SQL layer: the
// within-limit increment checks and adds under one lock, and status
// writes are guarded by the expected prior status.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	claims    map[string]domain.Claim
	config    *domain.LimitConfig
	resetLogs []domain.UsageResetLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[string]domain.User{},
		claims: map[string]domain.Claim{},
	}
}

func (f *fakeStore) Users() repository.UserRepository             { return &fakeUserRepo{f} }
func (f *fakeStore) Claims() repository.ClaimRepository           { return &fakeClaimRepo{f} }
func (f *fakeStore) LimitConfig() repository.LimitConfigRepository { return &fakeConfigRepo{f} }
func (f *fakeStore) ResetLogs() repository.ResetLogRepository     { return &fakeResetLogRepo{f} }

func (f *fakeStore) InTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(f)
}

func (f *fakeStore) addUser(user domain.User) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addClaim(claim domain.Claim) domain.Claim {
	f.mu.Lock()
	defer f.mu.Unlock()
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	claim.CreatedAt = time.Now()
	claim.UpdatedAt = claim.CreatedAt
	f.claims[claim.ID] = claim
	return claim
}

func (f *fakeStore) userByID(id string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeStore) claimByID(id string) domain.Claim {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[id]
}

type fakeUserRepo struct{ f *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	created := r.f.addUser(*user)
	*user = created
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.f.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, user := range r.f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) SetClaimLimit(ctx context.Context, id string, limit decimal.NullDecimal) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ClaimLimit = limit
	r.f.users[id] = user
	return nil
}

func (r *fakeUserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLoginAt = &at
	r.f.users[id] = user
	return nil
}

func (r *fakeUserRepo) AddUsed(ctx context.Context, id string, amount decimal.Decimal) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.UsedClaimAmount = user.UsedClaimAmount.Add(amount)
	r.f.users[id] = user
	return nil
}

func (r *fakeUserRepo) AddUsedWithinLimit(ctx context.Context, id string, amount, limit decimal.Decimal) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return false, nil
	}
	if user.UsedClaimAmount.Add(amount).GreaterThan(limit) {
		return false, nil
	}
	user.UsedClaimAmount = user.UsedClaimAmount.Add(amount)
	r.f.users[id] = user
	return true, nil
}

func (r *fakeUserRepo) SubtractUsed(ctx context.Context, id string, amount decimal.Decimal) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	next := user.UsedClaimAmount.Sub(amount)
	if next.IsNegative() {
		next = decimal.Zero
	}
	user.UsedClaimAmount = next
	r.f.users[id] = user
	return nil
}

func (r *fakeUserRepo) SetUsed(ctx context.Context, id string, amount decimal.Decimal) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.UsedClaimAmount = amount
	r.f.users[id] = user
	return nil
}

func (r *fakeUserRepo) ResetUsed(ctx context.Context, role *domain.Role) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var affected int64
	for id, user := range r.f.users {
		if role != nil && user.Role != *role {
			continue
		}
		user.UsedClaimAmount = decimal.Zero
		r.f.users[id] = user
		affected++
	}
	return affected, nil
}

type fakeClaimRepo struct{ f *fakeStore }

func (r *fakeClaimRepo) Create(ctx context.Context, claim *domain.Claim) error {
	created := r.f.addClaim(*claim)
	*claim = created
	return nil
}

func (r *fakeClaimRepo) UpdateDraft(ctx context.Context, claim *domain.Claim) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	existing, ok := r.f.claims[claim.ID]
	if !ok || existing.Status != domain.ClaimStatusDraft {
		return pgx.ErrNoRows
	}
	claim.UpdatedAt = time.Now()
	r.f.claims[claim.ID] = *claim
	return nil
}

func (r *fakeClaimRepo) UpdateStatus(ctx context.Context, claim *domain.Claim, expected domain.ClaimStatus) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	existing, ok := r.f.claims[claim.ID]
	if !ok || existing.Status != expected {
		return false, nil
	}
	claim.UpdatedAt = time.Now()
	r.f.claims[claim.ID] = *claim
	return true, nil
}

func (r *fakeClaimRepo) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	claim, ok := r.f.claims[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &claim, nil
}

func (r *fakeClaimRepo) Delete(ctx context.Context, id string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.claims[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.f.claims, id)
	return nil
}

func (r *fakeClaimRepo) matches(claim domain.Claim, filter repository.ClaimFilter) bool {
	if filter.OwnerID != nil && claim.OwnerID != *filter.OwnerID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if claim.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ReviewableBy != nil {
		reviewer := *filter.ReviewableBy
		if claim.ManagerID != nil && *claim.ManagerID == reviewer {
			return true
		}
		if claim.OwnerRole == domain.RoleEmployee {
			owner := r.f.users[claim.OwnerID]
			if owner.ManagerID != nil && *owner.ManagerID == reviewer {
				return true
			}
		}
		return false
	}
	return true
}

func (r *fakeClaimRepo) ListWithFilter(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []domain.Claim
	for _, claim := range r.f.claims {
		if r.matches(claim, filter) {
			out = append(out, claim)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeClaimRepo) CountWithFilter(ctx context.Context, filter repository.ClaimFilter) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, claim := range r.f.claims {
		if r.matches(claim, filter) {
			count++
		}
	}
	return count, nil
}

func (r *fakeClaimRepo) SumCountedSince(ctx context.Context, ownerID string, cutoff *time.Time) (decimal.Decimal, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	total := decimal.Zero
	for _, claim := range r.f.claims {
		if claim.OwnerID != ownerID {
			continue
		}
		switch claim.Status {
		case domain.ClaimStatusSubmitted, domain.ClaimStatusApproved, domain.ClaimStatusReimbursed:
		default:
			continue
		}
		if cutoff != nil && (claim.SubmittedAt == nil || !claim.SubmittedAt.After(*cutoff)) {
			continue
		}
		total = total.Add(claim.Amount)
	}
	return total, nil
}

type fakeConfigRepo struct{ f *fakeStore }

func (r *fakeConfigRepo) Get(ctx context.Context) (*domain.LimitConfig, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.config == nil {
		return nil, pgx.ErrNoRows
	}
	cfg := *r.f.config
	return &cfg, nil
}

func (r *fakeConfigRepo) Create(ctx context.Context, cfg *domain.LimitConfig) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	cfg.ID = uuid.NewString()
	cfg.CreatedAt = time.Now()
	cfg.UpdatedAt = cfg.CreatedAt
	clone := *cfg
	r.f.config = &clone
	return nil
}

func (r *fakeConfigRepo) Update(ctx context.Context, cfg *domain.LimitConfig) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.config == nil {
		return pgx.ErrNoRows
	}
	cfg.UpdatedAt = time.Now()
	clone := *cfg
	r.f.config = &clone
	return nil
}

type fakeResetLogRepo struct{ f *fakeStore }

func (r *fakeResetLogRepo) Create(ctx context.Context, log *domain.UsageResetLog) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	log.ID = uuid.NewString()
	log.CreatedAt = time.Now()
	r.f.resetLogs = append(r.f.resetLogs, *log)
	return nil
}

func (r *fakeResetLogRepo) Latest(ctx context.Context) (*domain.UsageResetLog, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if len(r.f.resetLogs) == 0 {
		return nil, pgx.ErrNoRows
	}
	latest := r.f.resetLogs[0]
	for _, log := range r.f.resetLogs[1:] {
		if log.RunAt.After(latest.RunAt) {
			latest = log
		}
	}
	return &latest, nil
}

func (r *fakeResetLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.UsageResetLog, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	logs := make([]domain.UsageResetLog, len(r.f.resetLogs))
	copy(logs, r.f.resetLogs)
	sort.Slice(logs, func(i, j int) bool { return logs[i].RunAt.After(logs[j].RunAt) })
	if limit > 0 && limit < len(logs) {
		logs = logs[:limit]
	}
	return logs, nil
}

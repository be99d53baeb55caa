package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/domain"
)

func TestIncrementWithinLimit(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()
	user := f.addUser(domain.User{Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true})
	limit := decimal.NewFromInt(100)

	ok, err := svc.IncrementWithinLimit(ctx, user.ID, decimal.NewFromInt(60), limit)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IncrementWithinLimit(ctx, user.ID, decimal.NewFromInt(50), limit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "60", f.userByID(user.ID).UsedClaimAmount.String())

	// Filling up to the exact ceiling fits.
	ok, err = svc.IncrementWithinLimit(ctx, user.ID, decimal.NewFromInt(40), limit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "100", f.userByID(user.ID).UsedClaimAmount.String())
}

func TestNonPositiveAmountsAreNoOps(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()
	user := f.addUser(domain.User{Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true})

	require.NoError(t, svc.Increment(ctx, user.ID, decimal.Zero))
	require.NoError(t, svc.Decrement(ctx, user.ID, decimal.NewFromInt(-5)))
	ok, err := svc.IncrementWithinLimit(ctx, user.ID, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.userByID(user.ID).UsedClaimAmount.IsZero())
}

func TestDecrementClampsAtZero(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()
	user := f.addUser(domain.User{
		Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true,
		UsedClaimAmount: decimal.NewFromInt(30),
	})

	require.NoError(t, svc.Decrement(ctx, user.ID, decimal.NewFromInt(50)))
	assert.True(t, f.userByID(user.ID).UsedClaimAmount.IsZero())
}

func TestRecomputeRebuildsFromCountedClaims(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()
	user := f.addUser(domain.User{
		Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true,
		UsedClaimAmount: decimal.NewFromInt(999),
	})

	now := time.Now()
	f.addClaim(domain.Claim{
		OwnerID: user.ID, OwnerRole: domain.RoleEmployee, Title: "a",
		Amount: decimal.NewFromInt(100), Status: domain.ClaimStatusSubmitted,
		CountedInUsage: true, SubmittedAt: &now,
	})
	f.addClaim(domain.Claim{
		OwnerID: user.ID, OwnerRole: domain.RoleEmployee, Title: "b",
		Amount: decimal.NewFromInt(40), Status: domain.ClaimStatusApproved,
		CountedInUsage: true, SubmittedAt: &now,
	})
	f.addClaim(domain.Claim{
		OwnerID: user.ID, OwnerRole: domain.RoleEmployee, Title: "rejected stays out",
		Amount: decimal.NewFromInt(500), Status: domain.ClaimStatusRejected,
		SubmittedAt: &now,
	})
	f.addClaim(domain.Claim{
		OwnerID: user.ID, OwnerRole: domain.RoleEmployee, Title: "draft stays out",
		Amount: decimal.NewFromInt(500), Status: domain.ClaimStatusDraft,
	})

	total, err := svc.Recompute(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "140", total.String())
	assert.Equal(t, "140", f.userByID(user.ID).UsedClaimAmount.String())

	_, err = svc.Recompute(ctx, "missing")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestRecomputeHonorsResetCutoff(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()
	user := f.addUser(domain.User{Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true})

	before := time.Now().Add(-time.Hour)
	after := time.Now().Add(time.Hour)
	f.addClaim(domain.Claim{
		OwnerID: user.ID, OwnerRole: domain.RoleEmployee, Title: "old",
		Amount: decimal.NewFromInt(300), Status: domain.ClaimStatusApproved,
		CountedInUsage: true, SubmittedAt: &before,
	})
	f.addClaim(domain.Claim{
		OwnerID: user.ID, OwnerRole: domain.RoleEmployee, Title: "new",
		Amount: decimal.NewFromInt(25), Status: domain.ClaimStatusSubmitted,
		CountedInUsage: true, SubmittedAt: &after,
	})

	_, err := svc.ResetAll(ctx, nil, "rollover")
	require.NoError(t, err)

	// Only claims submitted after the reset count again.
	total, err := svc.Recompute(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "25", total.String())
}

func TestResetAllScopedByRole(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()
	employee := f.addUser(domain.User{
		Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true,
		UsedClaimAmount: decimal.NewFromInt(100),
	})
	manager := f.addUser(domain.User{
		Name: "Dana", Email: "dana@acme.test", Role: domain.RoleManager, Active: true,
		UsedClaimAmount: decimal.NewFromInt(200),
	})

	role := domain.RoleEmployee
	affected, err := svc.ResetAll(ctx, &role, "employees only")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.True(t, f.userByID(employee.ID).UsedClaimAmount.IsZero())
	assert.Equal(t, "200", f.userByID(manager.ID).UsedClaimAmount.String())

	logs, err := svc.ResetHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(1), logs[0].UsersAffected)
	assert.Equal(t, "employees only", logs[0].Note)

	bad := domain.Role("ghost")
	_, err = svc.ResetAll(ctx, &bad, "")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestLatestResetAt(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := NewUsageService(f, nil, zap.NewNop())
	ctx := context.Background()

	cutoff, err := svc.LatestResetAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, cutoff)

	_, err = svc.ResetAll(ctx, nil, "first")
	require.NoError(t, err)

	cutoff, err = svc.LatestResetAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, cutoff)
	assert.WithinDuration(t, time.Now(), *cutoff, time.Minute)
}

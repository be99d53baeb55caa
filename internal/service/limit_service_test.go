package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/domain"
)

func newTestLimitService(f *fakeStore) *LimitService {
	return NewLimitService(LimitDependencies{
		Store:     f,
		SeedLimit: decimal.NewFromInt(1000),
		Logger:    zap.NewNop(),
	})
}

func TestGetConfigSeedsSingleton(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestLimitService(f)

	cfg, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000", cfg.DefaultClaimLimit.String())
	assert.NotEmpty(t, cfg.ID)

	again, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)
}

func TestEffectiveLimitResolutionOrder(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestLimitService(f)
	ctx := context.Background()
	admin := f.addUser(domain.User{Name: "Ada", Email: "ada@acme.test", Role: domain.RoleAdmin, Active: true})

	roleLimit := decimal.NewFromInt(500)
	_, err := svc.SetRoleLimit(ctx, &admin, domain.RoleEmployee, &roleLimit)
	require.NoError(t, err)

	user := &domain.User{ID: "u1", Role: domain.RoleEmployee}

	// Role default beats the global default.
	limit, err := svc.EffectiveLimit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "500", limit.String())

	// Personal override beats both.
	user.ClaimLimit = decimal.NullDecimal{Decimal: decimal.NewFromInt(50), Valid: true}
	limit, err = svc.EffectiveLimit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "50", limit.String())

	// Other roles fall back to the global default.
	manager := &domain.User{ID: "u2", Role: domain.RoleManager}
	limit, err = svc.EffectiveLimit(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, "1000", limit.String())

	// Remaining subtracts recorded usage from the resolved limit.
	manager.UsedClaimAmount = decimal.NewFromInt(400)
	remaining, err := svc.Remaining(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, "600", remaining.String())
}

func TestSetRoleLimitClears(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestLimitService(f)
	ctx := context.Background()
	admin := f.addUser(domain.User{Name: "Ada", Email: "ada@acme.test", Role: domain.RoleAdmin, Active: true})

	roleLimit := decimal.NewFromInt(500)
	_, err := svc.SetRoleLimit(ctx, &admin, domain.RoleEmployee, &roleLimit)
	require.NoError(t, err)

	cfg, err := svc.SetRoleLimit(ctx, &admin, domain.RoleEmployee, nil)
	require.NoError(t, err)
	_, present := cfg.RoleClaimLimits[domain.RoleEmployee]
	assert.False(t, present)

	_, err = svc.SetRoleLimit(ctx, &admin, domain.Role("ghost"), &roleLimit)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestSetDefaultLimitValidation(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestLimitService(f)
	admin := f.addUser(domain.User{Name: "Ada", Email: "ada@acme.test", Role: domain.RoleAdmin, Active: true})

	_, err := svc.SetDefaultLimit(context.Background(), &admin, decimal.NewFromInt(-5))
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	cfg, err := svc.SetDefaultLimit(context.Background(), &admin, decimal.NewFromInt(2500))
	require.NoError(t, err)
	assert.Equal(t, "2500", cfg.DefaultClaimLimit.String())
	require.NotNil(t, cfg.UpdatedBy)
	assert.Equal(t, admin.ID, *cfg.UpdatedBy)
}

func TestSetUserOverride(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestLimitService(f)
	ctx := context.Background()
	user := f.addUser(domain.User{Name: "Eli", Email: "eli@acme.test", Role: domain.RoleEmployee, Active: true})

	override := decimal.NewFromInt(300)
	updated, err := svc.SetUserOverride(ctx, user.ID, &override)
	require.NoError(t, err)
	require.True(t, updated.ClaimLimit.Valid)
	assert.Equal(t, "300", updated.ClaimLimit.Decimal.String())

	updated, err = svc.SetUserOverride(ctx, user.ID, nil)
	require.NoError(t, err)
	assert.False(t, updated.ClaimLimit.Valid)

	_, err = svc.SetUserOverride(ctx, "missing", &override)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))

	negative := decimal.NewFromInt(-1)
	_, err = svc.SetUserOverride(ctx, user.ID, &negative)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/domain"
)

func newTestAuthService(f *fakeStore) *AuthService {
	return NewAuthService(AuthDependencies{
		Store:      f,
		Tokens:     auth.NewTokenManager("test-secret", 60),
		BcryptCost: 4,
		Logger:     zap.NewNop(),
	})
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestAuthService(f)
	ctx := context.Background()
	manager := f.addUser(domain.User{Name: "Dana", Email: "dana@acme.test", Role: domain.RoleManager, Active: true})

	result, err := svc.Register(ctx, RegisterInput{
		Name:      "Eli",
		Email:     "Eli@Acme.Test",
		Password:  "hunter22",
		Role:      domain.RoleEmployee,
		ManagerID: &manager.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "eli@acme.test", result.User.Email)
	require.NotNil(t, result.User.ManagerID)
	assert.Equal(t, manager.ID, *result.User.ManagerID)

	login, err := svc.Login(ctx, "eli@acme.test", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLoginAt)

	_, err = svc.Login(ctx, "eli@acme.test", "wrong")
	assert.Equal(t, "UNAUTHORIZED", domainCode(t, err))

	_, err = svc.Login(ctx, "nobody@acme.test", "hunter22")
	assert.Equal(t, "UNAUTHORIZED", domainCode(t, err))
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestAuthService(f)
	ctx := context.Background()
	manager := f.addUser(domain.User{Name: "Dana", Email: "dana@acme.test", Role: domain.RoleManager, Active: true})
	inactive := f.addUser(domain.User{Name: "Ivy", Email: "ivy@acme.test", Role: domain.RoleManager, Active: false})

	base := RegisterInput{
		Name: "Eli", Email: "eli@acme.test", Password: "hunter22",
		Role: domain.RoleEmployee, ManagerID: &manager.ID,
	}

	short := base
	short.Password = "abc"
	_, err := svc.Register(ctx, short)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	badRole := base
	badRole.Role = domain.Role("wizard")
	_, err = svc.Register(ctx, badRole)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	orphan := base
	orphan.ManagerID = nil
	_, err = svc.Register(ctx, orphan)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	badManager := base
	badManager.ManagerID = &inactive.ID
	_, err = svc.Register(ctx, badManager)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = svc.Register(ctx, base)
	require.NoError(t, err)

	_, err = svc.Register(ctx, base)
	assert.Equal(t, "CONFLICT", domainCode(t, err))
}

func TestLoginDeactivatedAccount(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	svc := newTestAuthService(f)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{
		Name: "Finn", Email: "finn@acme.test", Password: "hunter22", Role: domain.RoleFinance,
	})
	require.NoError(t, err)

	user := f.userByID(result.User.ID)
	user.Active = false
	require.NoError(t, f.Users().Update(ctx, &user))

	_, err = svc.Login(ctx, "finn@acme.test", "hunter22")
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/domain"
	"github.com/spec-kit/claim-service/internal/repository"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

const limitConfigCacheKey = "claims:limit_config"

// LimitService resolves effective claim ceilings and owns limit-config
// administration. The config row is read-mostly, so reads go through a
// short-lived Redis cache that writes invalidate.
type LimitService struct {
	store     repository.Store
	cache     *redis.Client
	cacheTTL  time.Duration
	seedLimit decimal.Decimal
	logger    *zap.Logger
}

// LimitDependencies bundles what the service needs.
type LimitDependencies struct {
	Store     repository.Store
	Cache     *redis.Client
	CacheTTL  time.Duration
	SeedLimit decimal.Decimal
	Logger    *zap.Logger
}

// NewLimitService builds the service.
func NewLimitService(deps LimitDependencies) *LimitService {
	return &LimitService{
		store:     deps.Store,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		seedLimit: deps.SeedLimit,
		logger:    deps.Logger,
	}
}

type cachedLimitConfig struct {
	ID                string                         `json:"id"`
	DefaultClaimLimit decimal.Decimal                `json:"default_claim_limit"`
	RoleClaimLimits   map[domain.Role]decimal.Decimal `json:"role_claim_limits"`
	ResetCron         string                         `json:"reset_cron"`
}

// GetConfig returns the singleton limit config, creating it from the
// seed default on first read. Config store failures surface as
// infrastructure errors, never business errors.
func (s *LimitService) GetConfig(ctx context.Context) (*domain.LimitConfig, error) {
	if cfg := s.fromCache(ctx); cfg != nil {
		return cfg, nil
	}

	cfg, err := s.store.LimitConfig().Get(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		cfg = &domain.LimitConfig{
			DefaultClaimLimit: s.seedLimit,
			RoleClaimLimits:   map[domain.Role]decimal.Decimal{},
		}
		if err := s.store.LimitConfig().Create(ctx, cfg); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	} else if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.toCache(ctx, cfg)
	return cfg, nil
}

// EffectiveLimit resolves user override, then role default, then the
// global default.
func (s *LimitService) EffectiveLimit(ctx context.Context, user *domain.User) (decimal.Decimal, error) {
	if user.ClaimLimit.Valid {
		return user.ClaimLimit.Decimal, nil
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.EffectiveLimitFor(user), nil
}

// Remaining computes the advisory headroom for a user.
func (s *LimitService) Remaining(ctx context.Context, user *domain.User) (decimal.Decimal, error) {
	limit, err := s.EffectiveLimit(ctx, user)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Remaining(limit), nil
}

// SetDefaultLimit updates the global default ceiling.
func (s *LimitService) SetDefaultLimit(ctx context.Context, actor *domain.User, limit decimal.Decimal) (*domain.LimitConfig, error) {
	if limit.IsNegative() {
		return nil, apperrors.NewValidationError("default limit must be a non-negative number", nil)
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg.DefaultClaimLimit = limit
	cfg.UpdatedBy = &actor.ID
	if err := s.store.LimitConfig().Update(ctx, cfg); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.invalidate(ctx)
	return cfg, nil
}

// SetRoleLimit sets or clears the default ceiling for one role.
func (s *LimitService) SetRoleLimit(ctx context.Context, actor *domain.User, role domain.Role, limit *decimal.Decimal) (*domain.LimitConfig, error) {
	if !role.IsValid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	if limit != nil && limit.IsNegative() {
		return nil, apperrors.NewValidationError("role limit must be a non-negative number", nil)
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.RoleClaimLimits == nil {
		cfg.RoleClaimLimits = map[domain.Role]decimal.Decimal{}
	}
	if limit == nil {
		delete(cfg.RoleClaimLimits, role)
	} else {
		cfg.RoleClaimLimits[role] = *limit
	}
	cfg.UpdatedBy = &actor.ID
	if err := s.store.LimitConfig().Update(ctx, cfg); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.invalidate(ctx)
	return cfg, nil
}

// SetResetCron updates the periodic usage reset schedule.
func (s *LimitService) SetResetCron(ctx context.Context, actor *domain.User, spec string) (*domain.LimitConfig, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg.ResetCron = spec
	cfg.UpdatedBy = &actor.ID
	if err := s.store.LimitConfig().Update(ctx, cfg); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.invalidate(ctx)
	return cfg, nil
}

// SetUserOverride sets or clears a user's personal limit. A nil limit
// resets the user to role/global defaults.
func (s *LimitService) SetUserOverride(ctx context.Context, userID string, limit *decimal.Decimal) (*domain.User, error) {
	if limit != nil && limit.IsNegative() {
		return nil, apperrors.NewValidationError("claimLimit must be a non-negative number or null", nil)
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	override := decimal.NullDecimal{}
	if limit != nil {
		override = decimal.NullDecimal{Decimal: *limit, Valid: true}
	}
	if err := s.store.Users().SetClaimLimit(ctx, userID, override); err != nil {
		return nil, apperrors.MapError(err)
	}
	user.ClaimLimit = override
	return user, nil
}

func (s *LimitService) fromCache(ctx context.Context) *domain.LimitConfig {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, limitConfigCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var cached cachedLimitConfig
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	limits := cached.RoleClaimLimits
	if limits == nil {
		limits = map[domain.Role]decimal.Decimal{}
	}
	return &domain.LimitConfig{
		ID:                cached.ID,
		DefaultClaimLimit: cached.DefaultClaimLimit,
		RoleClaimLimits:   limits,
		ResetCron:         cached.ResetCron,
	}
}

func (s *LimitService) toCache(ctx context.Context, cfg *domain.LimitConfig) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(cachedLimitConfig{
		ID:                cfg.ID,
		DefaultClaimLimit: cfg.DefaultClaimLimit,
		RoleClaimLimits:   cfg.RoleClaimLimits,
		ResetCron:         cfg.ResetCron,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, limitConfigCacheKey, raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Debug("limit config cache write failed", zap.Error(err))
	}
}

func (s *LimitService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, limitConfigCacheKey).Err(); err != nil && s.logger != nil {
		s.logger.Debug("limit config cache invalidation failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/claim-service/internal/api/http"
	"github.com/spec-kit/claim-service/internal/api/http/handlers"
	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/config"
	"github.com/spec-kit/claim-service/internal/events"
	"github.com/spec-kit/claim-service/internal/observability"
	"github.com/spec-kit/claim-service/internal/persistence"
	"github.com/spec-kit/claim-service/internal/repository"
	"github.com/spec-kit/claim-service/internal/service"
	"github.com/spec-kit/claim-service/internal/storage"
	"github.com/spec-kit/claim-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	seedLimit, err := decimal.NewFromString(cfg.Claims.DefaultClaimLimit)
	if err != nil {
		logger.Fatal("invalid CLAIMS_DEFAULT_LIMIT", zap.Error(err))
	}

	receipts, err := storage.NewLocalReceiptStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeBytes)
	if err != nil {
		logger.Fatal("failed to init receipt storage", zap.Error(err))
	}

	store := repository.NewStore(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		Store:      store,
		Tokens:     tokens,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	limitService := service.NewLimitService(service.LimitDependencies{
		Store:     store,
		Cache:     redis.ClientHandle(),
		CacheTTL:  cfg.Claims.LimitCacheTTL(),
		SeedLimit: seedLimit,
		Logger:    logger,
	})
	usageService := service.NewUsageService(store, dispatcher, logger)
	claimService := service.NewClaimService(service.ClaimDependencies{
		Store:      store,
		Usage:      usageService,
		Limits:     limitService,
		Receipts:   receipts,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notify)

	worker.StartNotificationWorker(notificationService)
	resetJob := worker.NewUsageResetJob(usageService, limitService, cfg.Claims.UsageResetCron, logger)
	if err := resetJob.Start(ctx); err != nil {
		logger.Fatal("failed to start usage reset job", zap.Error(err))
	}
	defer resetJob.Stop()

	authMiddleware := auth.NewAuthMiddleware(tokens, store.Users())

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Uploads.MaxSizeBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Claims:         handlers.NewClaimsHandler(claimService, receipts),
		Review:         handlers.NewReviewHandler(claimService),
		Finance:        handlers.NewFinanceHandler(claimService),
		Users:          handlers.NewUsersHandler(limitService),
		Config:         handlers.NewConfigHandler(limitService),
		Usage:          handlers.NewUsageHandler(usageService),
		Files:          handlers.NewFilesHandler(receipts),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

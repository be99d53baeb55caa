package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/claim-service/internal/api/http/handlers"
	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Claims         *handlers.ClaimsHandler
	Review         *handlers.ReviewHandler
	Finance        *handlers.FinanceHandler
	Users          *handlers.UsersHandler
	Config         *handlers.ConfigHandler
	Usage          *handlers.UsageHandler
	Files          *handlers.FilesHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.Me)

	reviewRoles := auth.RequireRole(domain.RoleManager, domain.RoleAdmin)
	financeRoles := auth.RequireRole(domain.RoleFinance, domain.RoleAdmin)
	ownerRoles := auth.RequireRole(domain.RoleEmployee, domain.RoleManager, domain.RoleAdmin)

	claims := api.Group("/claims", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	// Static segments first so they are not captured by /:id.
	claims.Get("/review", reviewRoles, cfg.Review.List)
	claims.Get("/finance", financeRoles, cfg.Finance.List)

	claims.Post("", ownerRoles, cfg.Claims.Create)
	claims.Get("", cfg.Claims.List)
	claims.Get("/:id", cfg.Claims.Get)
	claims.Patch("/:id", ownerRoles, cfg.Claims.Update)
	claims.Delete("/:id", ownerRoles, cfg.Claims.Delete)
	claims.Post("/:id/submit", ownerRoles, cfg.Claims.Submit)
	claims.Get("/:id/manager", cfg.Claims.GetManager)

	claims.Post("/:id/approve", reviewRoles, cfg.Review.Approve)
	claims.Post("/:id/reject", reviewRoles, cfg.Review.Reject)
	claims.Post("/:id/reimburse", financeRoles, cfg.Finance.Reimburse)
	claims.Post("/:id/reject-finance", financeRoles, cfg.Finance.Reject)

	users := api.Group("/users", cfg.AuthMiddleware.Handle, financeRoles)
	users.Patch("/:id/limit", cfg.Users.SetLimit)

	configGroup := api.Group("/config", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	configGroup.Get("", cfg.Config.Get)
	configGroup.Patch("/default-limit", financeRoles, cfg.Config.SetDefaultLimit)
	configGroup.Patch("/role-limit", financeRoles, cfg.Config.SetRoleLimit)
	configGroup.Patch("/reset-cron", financeRoles, cfg.Config.SetResetCron)

	usage := api.Group("/usage", cfg.AuthMiddleware.Handle, financeRoles)
	usage.Post("/recompute/:id", cfg.Usage.Recompute)
	usage.Post("/reset", cfg.Usage.Reset)
	usage.Get("/resets", cfg.Usage.Resets)

	app.Get("/uploads/:file", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Files.Serve)
}

package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/DevDonal19/imparablesmujeres/internal/api/http/handlers"
	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/domain"
	"github.com/DevDonal19/imparablesmujeres/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Health)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireEditor(), cfg.Auth.Me)

	users := api.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/", auth.RequireAdmin(), cfg.Users.List)
	users.Post("/", auth.RequireAdmin(), cfg.Users.Create)
	users.Put("/profile/me", auth.RequireEditor(), cfg.Users.UpdateProfile)
	users.Get("/:id", auth.RequireEditor(), cfg.Users.Get)
	users.Put("/:id", auth.RequireSelfOrRole("id", domain.RoleAdmin), cfg.Users.Update)
	users.Delete("/:id", auth.RequireAdmin(), cfg.Users.Delete)
}

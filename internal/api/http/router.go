package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/contacts-api/internal/api/http/handlers"
	"github.com/spec-kit/contacts-api/internal/auth"
	"github.com/spec-kit/contacts-api/internal/observability"
	"github.com/spec-kit/contacts-api/internal/ratelimit"
)

// Rate limited route names, also used as metric labels.
const (
	RouteSignup       = "signup"
	RouteLogin        = "login"
	RouteRefreshToken = "refresh_token"
	RouteRequestEmail = "request_email"
	RouteUsersMe      = "users_me"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	// RateLimit is optional; routes are unguarded when nil.
	RateLimit *ratelimit.Middleware
	Metrics   *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limit := func(route string) fiber.Handler {
		if cfg.RateLimit == nil {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
		return cfg.RateLimit.Default(route)
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", limit(RouteSignup), cfg.Auth.Signup)
	authGroup.Post("/login", limit(RouteLogin), cfg.Auth.Login)
	authGroup.Get("/refresh_token", limit(RouteRefreshToken), cfg.Auth.RefreshToken)
	authGroup.Get("/confirmed_email/:token", cfg.Auth.ConfirmedEmail)
	authGroup.Post("/request_email", limit(RouteRequestEmail), cfg.Auth.RequestEmail)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)

	users := api.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/me", limit(RouteUsersMe), cfg.Users.Me)
}

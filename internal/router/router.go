package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/debate-go-api/internal/config"
	"github.com/noah-isme/debate-go-api/internal/handler"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DebateHandler       *handler.DebateHandler
	PresenceHandler     *handler.PresenceHandler
	ChallengeHandler    *handler.ChallengeHandler
	UserHandler         *handler.UserHandler
	LiveHandler         *handler.LiveHandler
	NotificationHandler *handler.NotificationHandler
	AdminSweepHandler   *handler.AdminSweepHandler
	JWTMiddleware       fiber.Handler
	OptionalJWT         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	optionalJWT := deps.OptionalJWT
	if optionalJWT == nil {
		optionalJWT = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2")

	// Debates and spectator presence, readable anonymously
	if deps.DebateHandler != nil || deps.PresenceHandler != nil {
		debates := v2.Group("/debates", optionalJWT)
		if deps.PresenceHandler != nil {
			deps.PresenceHandler.Register(debates)
		}
		if deps.DebateHandler != nil {
			deps.DebateHandler.Register(debates)
		}
	}

	if deps.LiveHandler != nil {
		live := v2.Group("/live", optionalJWT)
		deps.LiveHandler.Register(live)
	}

	if deps.UserHandler != nil {
		users := v2.Group("/users", jwtMiddleware)
		deps.UserHandler.Register(users)
	}

	if deps.ChallengeHandler != nil {
		challenges := v2.Group("/challenges", jwtMiddleware)
		deps.ChallengeHandler.Register(challenges)
	}

	if deps.NotificationHandler != nil {
		notifications := v2.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.AdminSweepHandler != nil {
		admin := v2.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
		deps.AdminSweepHandler.Register(admin)
	}
}

// MessageLimiter builds the per-user limiter shared by debate and spectator chat posts.
func MessageLimiter(identifier string, perMinute int) fiber.Handler {
	return middleware.RateLimit(identifier, perMinute, time.Minute)
}

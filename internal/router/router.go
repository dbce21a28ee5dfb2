package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-activity-timeline/internal/config"
	"github.com/noah-isme/gema-activity-timeline/internal/handler"
	"github.com/noah-isme/gema-activity-timeline/internal/middleware"
	"github.com/noah-isme/gema-activity-timeline/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TimelineHandler *handler.TimelineHandler
	JWTMiddleware   fiber.Handler
	HealthProbes    []handler.Probe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	if deps.TimelineHandler == nil {
		return
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	timeline := api.Group("/timeline",
		jwtMiddleware,
		middleware.RequireRole(cfg.AllowedRoles...),
		middleware.RateLimit("timeline", cfg.RateLimitMax, cfg.RateLimitWindow),
	)
	deps.TimelineHandler.Register(timeline)
}

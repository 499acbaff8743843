package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casecamp/casecamp-api/internal/config"
	"github.com/casecamp/casecamp-api/internal/handler"
	"github.com/casecamp/casecamp-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler   *handler.SubmissionHandler
	CatalogHandler      *handler.CatalogHandler
	LeaderboardHandler  *handler.LeaderboardHandler
	AnalyticsHandler    *handler.AnalyticsHandler
	NotificationHandler *handler.NotificationHandler
	SeedHandler         *handler.SeedHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SubmissionHandler != nil {
		submissions := app.Group("/api/v2/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.CatalogHandler != nil {
		weeks := app.Group("/api/v2/weeks", jwtMiddleware)
		deps.CatalogHandler.RegisterWeeks(weeks)

		cases := app.Group("/api/v2/cases", jwtMiddleware)
		deps.CatalogHandler.RegisterCases(cases)
	}

	// Standings and analytics are read-only derived views.
	if deps.LeaderboardHandler != nil {
		leaderboards := app.Group("/api/v2/leaderboards")
		deps.LeaderboardHandler.Register(leaderboards)
	}

	if deps.AnalyticsHandler != nil {
		analytics := app.Group("/api/v2/analytics", jwtMiddleware)
		deps.AnalyticsHandler.Register(analytics)
	}

	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v2/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.SeedHandler != nil {
		seed := app.Group("/api/v2/seed")
		deps.SeedHandler.Register(seed)
	}
}

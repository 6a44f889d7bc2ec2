package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/handler"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler    *handler.SubmissionHandler
	AdminGradingHandler  *handler.AdminGradingHandler
	GradingFlagHandler   *handler.GradingFlagHandler
	AdminTaskHandler     *handler.AdminTaskHandler
	AdminActivityHandler *handler.AdminActivityHandler
	NotificationHandler  *handler.NotificationHandler
	HealthChecks         []handler.DependencyCheck
	JWTMiddleware        fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	learner := app.Group("/api/v2", jwtMiddleware)

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.RegisterAssessments(learner.Group("/assessments"))
		deps.SubmissionHandler.Register(learner.Group("/submissions"))
	}

	if deps.GradingFlagHandler != nil {
		deps.GradingFlagHandler.Register(
			learner.Group("/flags", middleware.Guard(middleware.AuthOptions{RequireUser: true})),
			middleware.RateLimit("grading-flags", cfg.FlagRateLimit, cfg.FlagRateWindow),
		)
	}

	if deps.NotificationHandler != nil {
		notifications := learner.Group("/notifications", middleware.Guard(middleware.AuthOptions{RequireUser: true}))
		deps.NotificationHandler.Register(notifications)
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireStaff())

	if deps.AdminGradingHandler != nil {
		deps.AdminGradingHandler.Register(admin.Group("/submissions"))
	}
	if deps.GradingFlagHandler != nil {
		deps.GradingFlagHandler.RegisterAdmin(admin.Group("/flags"))
	}
	if deps.AdminTaskHandler != nil {
		deps.AdminTaskHandler.Register(admin.Group("/tasks"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}
}

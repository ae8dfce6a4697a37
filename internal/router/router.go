package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jantenpas/llm-eval-studio/internal/config"
	"github.com/jantenpas/llm-eval-studio/internal/handler"
	"github.com/jantenpas/llm-eval-studio/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RunHandler       *handler.RunHandler
	RunEventsHandler *handler.RunEventsHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	runs := api.Group("/runs")

	// The event stream registers first so /runs/events is matched before
	// the /runs/:id parameter route.
	if deps.RunEventsHandler != nil {
		deps.RunEventsHandler.Register(runs)
	}
	if deps.RunHandler != nil {
		deps.RunHandler.Register(runs)
	}
}

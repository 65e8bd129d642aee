package etl

import "github.com/gofiber/fiber/v2"

// SetupRoutes registers the extraction trigger. The endpoint is internal
// only; callers are the scheduler and the admin panel, both holding the
// service role key.
func SetupRoutes(app *fiber.App, h *Handlers, serviceGuard fiber.Handler) {
	app.Post("/xero-etl-extract", serviceGuard, h.Extract)
}

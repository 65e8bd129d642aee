package dashboards

import (
	"github.com/gofiber/fiber/v2"

	"ledgerline.com/xerobi/auth"
)

func SetupRoutes(app *fiber.App, h *Handlers, sessions *auth.SessionVerifier) {
	app.Get("/dashboards", auth.RequireSession(sessions), h.List)
}

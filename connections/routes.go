package connections

import (
	"github.com/gofiber/fiber/v2"

	"ledgerline.com/xerobi/auth"
)

// SetupRoutes registers the connection lifecycle routes. The refresh endpoint
// is internal and guarded by the service role key; the connection status and
// disconnect endpoints require a browser session. The OAuth callback checks
// the session itself because its failure mode is a redirect, not a JSON 401.
func SetupRoutes(app *fiber.App, h *Handlers, sessions *auth.SessionVerifier, serviceGuard fiber.Handler) {
	app.Get("/xero-oauth-connect", h.Connect)
	app.Get("/xero-oauth-callback", h.OAuthCallback)

	app.Post("/xero-refresh-token", serviceGuard, h.RefreshToken)

	sessionGuard := auth.RequireSession(sessions)
	app.Get("/xero-connection", sessionGuard, h.GetConnection)
	app.Delete("/xero-connection", sessionGuard, h.Disconnect)
}

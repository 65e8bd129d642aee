package connections

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledgerline.com/xerobi/auth"
	"ledgerline.com/xerobi/pg/model"
)

// Handlers provides the HTTP surface for the connection lifecycle.
type Handlers struct {
	svc         *Service
	store       model.Store
	sessions    *auth.SessionVerifier
	validator   *validator.Validate
	frontendURL string
	logger      *zap.Logger
}

func NewHandlers(svc *Service, store model.Store, sessions *auth.SessionVerifier, frontendURL string, logger *zap.Logger) *Handlers {
	return &Handlers{
		svc:         svc,
		store:       store,
		sessions:    sessions,
		validator:   validator.New(),
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// Connect kicks off the OAuth flow by redirecting the browser to Xero.
// GET /xero-oauth-connect
func (h *Handlers) Connect(c *fiber.Ctx) error {
	return c.Redirect(h.svc.AuthorizeURL(uuid.NewString()), fiber.StatusFound)
}

// OAuthCallback lands the browser after Xero authorization. Every outcome is
// a redirect back to the settings page; failures carry an error message in
// the query string, success carries the organization name.
// GET /xero-oauth-callback?code=&state=&error=
func (h *Handlers) OAuthCallback(c *fiber.Ctx) error {
	if oauthErr := c.Query("error"); oauthErr != "" {
		h.logger.Error("xero oauth error", zap.String("error", oauthErr))
		return h.redirectError(c, oauthErr)
	}

	code := c.Query("code")
	if code == "" {
		return h.redirectError(c, "No authorization code provided")
	}

	claims, err := h.sessions.SessionFromRequest(c)
	if err != nil {
		h.logger.Error("oauth callback without valid session", zap.Error(err))
		return h.redirectError(c, "User not authenticated")
	}

	conn, err := h.svc.CompleteAuthorization(c.Context(), code, claims.UserID)
	if err != nil {
		h.logger.Error("oauth callback failed", zap.Error(err))
		return h.redirectError(c, err.Error())
	}

	return c.Redirect(
		h.frontendURL+"/settings?xero=connected&org="+url.QueryEscape(conn.OrganizationName),
		fiber.StatusFound,
	)
}

func (h *Handlers) redirectError(c *fiber.Ctx, message string) error {
	return c.Redirect(
		h.frontendURL+"/settings?xero=error&message="+url.QueryEscape(message),
		fiber.StatusFound,
	)
}

type refreshRequest struct {
	ConnectionID string `json:"connection_id" validate:"required,uuid"`
}

// RefreshToken mints a fresh access token for a connection. Internal
// endpoint; the refresh token itself never leaves the server.
// POST /xero-refresh-token
func (h *Handlers) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id is required",
		})
	}

	connectionID, err := uuid.Parse(req.ConnectionID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id is required",
		})
	}

	grant, err := h.svc.RefreshAccessToken(c.Context(), connectionID)
	if err != nil {
		h.logger.Error("token refresh failed",
			zap.String("connection_id", connectionID.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(grant)
}

// GetConnection returns the signed-in user's connection, if any.
// GET /xero-connection
func (h *Handlers) GetConnection(c *fiber.Ctx) error {
	claims, ok := auth.SessionFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	conn, err := h.store.GetConnectionByUserID(c.Context(), claims.UserID)
	var notFound *model.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No Xero connection"})
	}
	if err != nil {
		h.logger.Error("fetch connection failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(conn)
}

// Disconnect removes the signed-in user's connection.
// DELETE /xero-connection
func (h *Handlers) Disconnect(c *fiber.Ctx) error {
	claims, ok := auth.SessionFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := h.store.DeleteConnection(c.Context(), claims.UserID); err != nil {
		h.logger.Error("disconnect failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	h.logger.Info("xero disconnected",
		zap.String("user_id", claims.UserID.String()),
		zap.String("email", claims.Email))

	return c.JSON(fiber.Map{"message": "Disconnected"})
}

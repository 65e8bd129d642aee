package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SessionLocalsKey is where session middleware stores the verified claims.
const SessionLocalsKey = "session_claims"

// RequireServiceRole guards internal endpoints: the caller must present the
// service role key as a bearer token. The comparison is constant time.
func RequireServiceRole(serviceRoleKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(serviceRoleKey)) != 1 {
			return c.Status(ErrBadServiceKey.Code).JSON(fiber.Map{"error": ErrBadServiceKey.Message})
		}
		return c.Next()
	}
}

// RequireSession guards browser-facing endpoints: the session cookie must
// verify. Claims are stored in locals for the handler.
func RequireSession(verifier *SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := verifier.SessionFromRequest(c)
		if err != nil {
			if authErr, ok := err.(*Error); ok {
				return c.Status(authErr.Code).JSON(fiber.Map{"error": authErr.Message})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		c.Locals(SessionLocalsKey, claims)
		return c.Next()
	}
}

// SessionFromLocals retrieves claims stored by RequireSession.
func SessionFromLocals(c *fiber.Ctx) (*SessionClaims, bool) {
	claims, ok := c.Locals(SessionLocalsKey).(*SessionClaims)
	return claims, ok
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", &Error{"MISSING_TOKEN", "Authorization header required", 401}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", &Error{"MISSING_TOKEN", "Bearer token required", 401}
	}
	return parts[1], nil
}

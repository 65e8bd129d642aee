// Package auth identifies callers of the HTTP surface. Browser requests carry
// a session cookie issued by the auth backend (an HS256 JWT); internal
// machinery (the ETL trigger, the refresh endpoint) authenticates with the
// service role key instead.
package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie the frontend's auth client sets after
// sign-in. The value is an access token for the auth backend.
const SessionCookieName = "sb-access-token"

// SessionClaims is what this service needs to know about a signed-in user.
type SessionClaims struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

// SessionVerifier validates session cookies against the auth backend's
// signing secret.
type SessionVerifier struct {
	secret []byte
}

func NewSessionVerifier(secret string) (*SessionVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("session JWT secret cannot be empty")
	}
	return &SessionVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a session token and extracts the user identity.
func (v *SessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidSession
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims := &SessionClaims{UserID: userID}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	return claims, nil
}

// SessionFromRequest reads the session cookie off a request and verifies it.
func (v *SessionVerifier) SessionFromRequest(c *fiber.Ctx) (*SessionClaims, error) {
	cookie := c.Cookies(SessionCookieName)
	if cookie == "" {
		return nil, ErrNoSession
	}
	return v.Verify(cookie)
}

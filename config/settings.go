package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the typed configuration the application runs on. It is loaded
// once at startup and passed down explicitly; nothing else in the codebase
// reads the environment.
type Settings struct {
	ListenAddr  string `validate:"required"`
	DatabaseURL string `validate:"required"`

	XeroClientID     string `validate:"required"`
	XeroClientSecret string `validate:"required"`
	XeroRedirectURI  string `validate:"required,url"`

	EncryptionKey    string `validate:"required"`
	SessionJWTSecret string `validate:"required"`
	ServiceRoleKey   string `validate:"required"`

	FrontendURL string `validate:"required,url"`

	XeroTimeout time.Duration
}

// Load resolves and validates all settings through the manager.
func Load(m *Manager) (*Settings, error) {
	s := &Settings{
		ListenAddr:       ":" + m.GetWithDefault("PORT", "8080"),
		DatabaseURL:      m.Get("DATABASE_URL"),
		XeroClientID:     m.Get("XERO_CLIENT_ID"),
		XeroClientSecret: m.Get("XERO_CLIENT_SECRET"),
		XeroRedirectURI:  m.Get("XERO_REDIRECT_URI"),
		EncryptionKey:    m.Get("ENCRYPTION_KEY"),
		SessionJWTSecret: m.Get("SESSION_JWT_SECRET"),
		ServiceRoleKey:   m.Get("SERVICE_ROLE_KEY"),
		FrontendURL:      m.GetWithDefault("FRONTEND_URL", "http://localhost:3000"),
		XeroTimeout:      30 * time.Second,
	}

	if raw := m.Get("XERO_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse XERO_TIMEOUT: %w", err)
		}
		s.XeroTimeout = d
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("incomplete configuration: %w", err)
	}
	return s, nil
}

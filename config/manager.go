// Package config resolves runtime configuration. A Manager fronts one of the
// pluggable providers (environment variables or Azure Key Vault) with an
// env-file fallback; Settings is the typed, validated view the rest of the
// application is handed at startup.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"ledgerline.com/xerobi/config/providers"
)

// Manager resolves configuration keys against a primary provider, falling
// back to environment variables when the primary is a remote source.
type Manager struct {
	source   providers.Type
	provider providers.Provider
	fallback providers.Provider
	logger   *zap.Logger
}

// NewManager bootstraps a Manager. CONFIG_SOURCE and CONFIG_SOURCE_CONFIG
// are read from the environment directly since no provider exists yet.
func NewManager(logger *zap.Logger) (*Manager, error) {
	source := providers.Type(os.Getenv("CONFIG_SOURCE"))
	if source == "" {
		source = providers.TypeEnvFile
	}

	var options map[string]interface{}
	if source != providers.TypeEnvFile {
		if raw := os.Getenv("CONFIG_SOURCE_CONFIG"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &options); err != nil {
				return nil, fmt.Errorf("parse CONFIG_SOURCE_CONFIG: %w", err)
			}
		}
	}

	providerCfg := providers.Config{Type: source, Options: options}
	if err := providers.Validate(providerCfg); err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}
	provider, err := providers.New(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("create primary provider: %w", err)
	}

	fallback, err := providers.New(providers.Config{Type: providers.TypeEnvFile})
	if err != nil {
		return nil, fmt.Errorf("create fallback provider: %w", err)
	}

	return &Manager{
		source:   source,
		provider: provider,
		fallback: fallback,
		logger:   logger,
	}, nil
}

// Get resolves a key, returning "" when it is unset everywhere.
func (m *Manager) Get(key string) string {
	ctx := context.Background()

	value, err := m.provider.Get(ctx, m.searchKey(key))
	if err == nil {
		return value
	}
	if m.source == providers.TypeEnvFile {
		return ""
	}

	// Remote source missed; environment variables keep their original keys.
	value, err = m.fallback.Get(ctx, key)
	if err != nil {
		m.logger.Debug("configuration key unresolved", zap.String("key", key), zap.Error(err))
		return ""
	}
	return value
}

// GetWithDefault resolves a key, returning defaultValue when it is unset.
func (m *Manager) GetWithDefault(key, defaultValue string) string {
	if value := m.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// Source reports the active configuration source.
func (m *Manager) Source() providers.Type {
	return m.source
}

// searchKey adapts a key to the primary source's naming rules.
func (m *Manager) searchKey(key string) string {
	if m.source == providers.TypeAzureKeyVault {
		// Key Vault secret names use hyphens instead of underscores.
		return strings.ReplaceAll(key, "_", "-")
	}
	return key
}

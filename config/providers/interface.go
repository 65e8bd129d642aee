// Package providers holds the pluggable configuration sources. A provider
// answers string lookups by key; where keys live and how they are named is
// the provider's business.
package providers

import (
	"context"
	"fmt"
)

// Type identifies a configuration source.
type Type string

const (
	TypeAzureKeyVault Type = "azure-keyvault"
	TypeEnvFile       Type = "env-file"
)

// Provider is a configuration source.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, defaultValue string) (string, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Type    Type                   `json:"provider_type"`
	Options map[string]interface{} `json:"config"`
}

// New builds the provider named by cfg.
func New(cfg Config) (Provider, error) {
	switch cfg.Type {
	case TypeAzureKeyVault:
		return NewAzureKeyVault(cfg)
	case TypeEnvFile:
		return NewEnvFile(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}

// Validate checks that cfg carries what its provider needs before any
// connection is attempted.
func Validate(cfg Config) error {
	switch cfg.Type {
	case TypeAzureKeyVault:
		return validateAzureKeyVault(cfg)
	case TypeEnvFile:
		return nil
	default:
		return fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}

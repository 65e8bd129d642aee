package providers

import (
	"context"
	"fmt"
	"os"
)

// EnvFile reads configuration from process environment variables.
type EnvFile struct{}

func NewEnvFile(cfg Config) (Provider, error) {
	return &EnvFile{}, nil
}

func (p *EnvFile) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("environment variable %q not set", key)
	}
	return value, nil
}

func (p *EnvFile) GetWithDefault(ctx context.Context, key, defaultValue string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return defaultValue, nil
}

package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// AzureKeyVault reads secrets from an Azure Key Vault, authenticated via the
// ambient Azure credential chain (managed identity in deployment). Secrets
// are cached for a few minutes to keep vault round-trips off hot paths.
type AzureKeyVault struct {
	client   *azsecrets.Client
	vaultURL string

	mu          sync.RWMutex
	cache       map[string]string
	cacheExpiry time.Time
	cacheTTL    time.Duration
}

// Key Vault secret names cannot contain underscores, so environment style
// keys are stored with hyphens: ENCRYPTION_KEY -> ENCRYPTION-KEY.
func keyVaultSecretName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func validateAzureKeyVault(cfg Config) error {
	vaultURL, _ := cfg.Options["vault_url"].(string)
	if vaultURL == "" {
		return fmt.Errorf("vault_url is required for the Azure Key Vault provider")
	}
	return nil
}

func NewAzureKeyVault(cfg Config) (Provider, error) {
	if err := validateAzureKeyVault(cfg); err != nil {
		return nil, err
	}
	vaultURL := cfg.Options["vault_url"].(string)

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create Key Vault client: %w", err)
	}

	return &AzureKeyVault{
		client:   client,
		vaultURL: vaultURL,
		cache:    make(map[string]string),
		cacheTTL: 5 * time.Minute,
	}, nil
}

func (p *AzureKeyVault) Get(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	if value, ok := p.cache[key]; ok && time.Now().Before(p.cacheExpiry) {
		p.mu.RUnlock()
		return value, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if value, ok := p.cache[key]; ok && time.Now().Before(p.cacheExpiry) {
		return value, nil
	}

	value, err := p.fetchSecret(ctx, keyVaultSecretName(key))
	if err != nil {
		return "", err
	}

	p.cache[key] = value
	p.cacheExpiry = time.Now().Add(p.cacheTTL)
	return value, nil
}

func (p *AzureKeyVault) GetWithDefault(ctx context.Context, key, defaultValue string) (string, error) {
	value, err := p.Get(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

func (p *AzureKeyVault) fetchSecret(ctx context.Context, secretName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := p.client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", secretName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %q has no value", secretName)
	}
	return *resp.Value, nil
}

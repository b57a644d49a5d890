package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"ipv-vendor-gateway/config"
)

// Provider names used as secret path segments
const (
	ProviderSupadata = "supadata"
	ProviderOpenAI   = "openai"
	ProviderYouTube  = "youtube"
)

// ProviderKeys holds the API keys for one upstream provider, in
// fallback order
type ProviderKeys struct {
	Provider string   `json:"provider"`
	Keys     []string `json:"keys"`
}

// Client wraps the HashiCorp Vault client. With Vault disabled it
// serves keys from the in-memory cache, seeded from configuration.
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]*ProviderKeys
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]*ProviderKeys),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]*ProviderKeys),
		cacheEnabled: true,
	}, nil
}

// SeedFromConfig loads provider keys from configuration into the cache.
// This is the fallback path for deployments without Vault.
func (c *Client) SeedFromConfig(gw *config.GatewayConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if keys := gw.SupadataKeys(); len(keys) > 0 {
		c.cache[ProviderSupadata] = &ProviderKeys{Provider: ProviderSupadata, Keys: keys}
	}
	if gw.OpenAIKey != "" {
		c.cache[ProviderOpenAI] = &ProviderKeys{Provider: ProviderOpenAI, Keys: []string{gw.OpenAIKey}}
	}
	if gw.YouTubeKey != "" {
		c.cache[ProviderYouTube] = &ProviderKeys{Provider: ProviderYouTube, Keys: []string{gw.YouTubeKey}}
	}
}

// StoreProviderKeys stores keys for a provider in Vault
func (c *Client) StoreProviderKeys(ctx context.Context, provider string, keys []string) error {
	data := &ProviderKeys{Provider: provider, Keys: keys}

	if !c.config.Enabled {
		// Store in local cache only (for development/testing)
		c.mu.Lock()
		c.cache[provider] = data
		c.mu.Unlock()
		return nil
	}

	path := c.secretPath(provider)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"provider": provider,
			"keys":     keys,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		return fmt.Errorf("failed to store provider keys in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[provider] = data
		c.mu.Unlock()
	}

	return nil
}

// GetProviderKeys retrieves keys for a provider, in fallback order
func (c *Client) GetProviderKeys(ctx context.Context, provider string) ([]string, error) {
	// Check cache first
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[provider]; ok {
			c.mu.RUnlock()
			return cached.Keys, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("keys for provider %s not found and vault is disabled", provider)
	}

	path := c.secretPath(provider)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider keys from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("keys for provider %s not found", provider)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	raw, ok := data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid keys format for provider %s", provider)
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok && s != "" {
			keys = append(keys, s)
		}
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[provider] = &ProviderKeys{Provider: provider, Keys: keys}
		c.mu.Unlock()
	}

	return keys, nil
}

// DeleteProviderKeys deletes a provider's keys from Vault
func (c *Client) DeleteProviderKeys(ctx context.Context, provider string) error {
	c.mu.Lock()
	delete(c.cache, provider)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	path := c.metadataPath(provider)

	_, err := c.client.Logical().DeleteWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to delete provider keys from vault: %w", err)
	}

	return nil
}

// RotateProviderKeys replaces a provider's keys
func (c *Client) RotateProviderKeys(ctx context.Context, provider string, keys []string) error {
	return c.StoreProviderKeys(ctx, provider, keys)
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*ProviderKeys)
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path for a provider
func (c *Client) secretPath(provider string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

// metadataPath returns the KV v2 metadata path for a provider
func (c *Client) metadataPath(provider string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

// NewMockClient creates a mock client for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cache:        make(map[string]*ProviderKeys),
		cacheEnabled: true,
	}
}

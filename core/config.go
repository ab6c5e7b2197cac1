package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultStateTTL    = 10 * time.Minute
	callbackPathFormat = "/integrations/%s/callback"
)

type ProviderCredentials struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
}

func (c ProviderCredentials) Empty() bool {
	return strings.TrimSpace(c.ClientID) == "" && strings.TrimSpace(c.ClientSecret) == ""
}

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	// BaseURL is the externally reachable origin used to build per-provider
	// callback redirect URIs.
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
	// StateSecret signs OAuth state tokens. Required.
	StateSecret string `koanf:"state_secret" mapstructure:"state_secret"`
	// StateTTLSeconds bounds state-token validity. Defaults to 600.
	StateTTLSeconds int                            `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
	Providers       map[string]ProviderCredentials `koanf:"providers" mapstructure:"providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:     "integrations",
		StateTTLSeconds: int(defaultStateTTL / time.Second),
		Providers:       map[string]ProviderCredentials{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.StateTTLSeconds < 0 {
		return fmt.Errorf("core: state_ttl_seconds must not be negative")
	}
	for key := range c.Providers {
		if _, err := ParseIntegrationType(key); err != nil {
			return fmt.Errorf("core: unknown provider key %q in config", key)
		}
	}
	return nil
}

func (c Config) StateTTL() time.Duration {
	if c.StateTTLSeconds <= 0 {
		return defaultStateTTL
	}
	return time.Duration(c.StateTTLSeconds) * time.Second
}

// CredentialsFor returns the client credentials for a provider. A missing
// or partial entry is a configuration error, raised eagerly by callers
// before any network traffic.
func (c Config) CredentialsFor(integration IntegrationType) (ProviderCredentials, error) {
	creds, ok := c.Providers[integration.String()]
	if !ok || strings.TrimSpace(creds.ClientID) == "" {
		return ProviderCredentials{}, newConfigError(fmt.Sprintf(
			"core: client credentials are not configured for provider %q", integration,
		))
	}
	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
	return creds, nil
}

// RedirectURI builds the fixed per-provider callback URL from BaseURL.
func (c Config) RedirectURI(integration IntegrationType) string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	return base + fmt.Sprintf(callbackPathFormat, integration)
}

package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultStateTTLSeconds      = 600
	defaultCredentialTTLSeconds = 90
	defaultMaxPages             = 50
)

// ProviderConfig carries the environment-sourced OAuth settings for one
// provider. Values arrive already resolved; the core never reads the
// environment directly.
type ProviderConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
	AuthURL      string   `koanf:"auth_url" mapstructure:"auth_url"`
	TokenURL     string   `koanf:"token_url" mapstructure:"token_url"`

	// Zero means inherit the module-level value.
	StateTTLSeconds      int `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
	CredentialTTLSeconds int `koanf:"credential_ttl_seconds" mapstructure:"credential_ttl_seconds"`
	MaxPages             int `koanf:"max_pages" mapstructure:"max_pages"`
}

type Config struct {
	ServiceName          string                    `koanf:"service_name" mapstructure:"service_name"`
	StateTTLSeconds      int                       `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
	CredentialTTLSeconds int                       `koanf:"credential_ttl_seconds" mapstructure:"credential_ttl_seconds"`
	MaxPages             int                       `koanf:"max_pages" mapstructure:"max_pages"`
	Providers            map[string]ProviderConfig `koanf:"providers" mapstructure:"providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "integrations",
		StateTTLSeconds:      defaultStateTTLSeconds,
		CredentialTTLSeconds: defaultCredentialTTLSeconds,
		MaxPages:             defaultMaxPages,
		Providers:            map[string]ProviderConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.StateTTLSeconds < 0 {
		return fmt.Errorf("core: state_ttl_seconds must not be negative")
	}
	if c.CredentialTTLSeconds < 0 {
		return fmt.Errorf("core: credential_ttl_seconds must not be negative")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("core: max_pages must not be negative")
	}
	for key, provider := range c.Providers {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("core: provider key must not be empty")
		}
		if provider.StateTTLSeconds < 0 || provider.CredentialTTLSeconds < 0 || provider.MaxPages < 0 {
			return fmt.Errorf("core: provider %q ttl and paging overrides must not be negative", key)
		}
	}
	return nil
}

// Provider returns the settings for a provider key with module-level
// defaults applied to unset overrides.
func (c Config) Provider(key string) ProviderConfig {
	provider := c.Providers[strings.TrimSpace(strings.ToLower(key))]
	if provider.StateTTLSeconds <= 0 {
		provider.StateTTLSeconds = c.StateTTLSeconds
	}
	if provider.CredentialTTLSeconds <= 0 {
		provider.CredentialTTLSeconds = c.CredentialTTLSeconds
	}
	if provider.MaxPages <= 0 {
		provider.MaxPages = c.MaxPages
	}
	return provider
}

func (p ProviderConfig) StateTTL() time.Duration {
	if p.StateTTLSeconds <= 0 {
		return time.Duration(defaultStateTTLSeconds) * time.Second
	}
	return time.Duration(p.StateTTLSeconds) * time.Second
}

func (p ProviderConfig) CredentialTTL() time.Duration {
	if p.CredentialTTLSeconds <= 0 {
		return time.Duration(defaultCredentialTTLSeconds) * time.Second
	}
	return time.Duration(p.CredentialTTLSeconds) * time.Second
}

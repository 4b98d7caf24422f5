package core

import (
	"fmt"
	"strings"
	"time"
)

type RefreshPolicy string

const (
	// RefreshPolicyAlways refreshes on every credential read that carries a
	// refresh token.
	RefreshPolicyAlways RefreshPolicy = "always"
	// RefreshPolicyNearExpiry refreshes only once the token is inside the
	// lead window of its expiry.
	RefreshPolicyNearExpiry RefreshPolicy = "near_expiry"
)

type RefreshConfig struct {
	Policy     RefreshPolicy `koanf:"policy" mapstructure:"policy"`
	LeadWindow time.Duration `koanf:"lead_window" mapstructure:"lead_window"`
	LockTTL    time.Duration `koanf:"lock_ttl" mapstructure:"lock_ttl"`
	LockWait   time.Duration `koanf:"lock_wait" mapstructure:"lock_wait"`
}

type Config struct {
	ServiceName          string        `koanf:"service_name" mapstructure:"service_name"`
	StateTTL             time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
	DefaultCredentialTTL time.Duration `koanf:"default_credential_ttl" mapstructure:"default_credential_ttl"`
	UpstreamTimeout      time.Duration `koanf:"upstream_timeout" mapstructure:"upstream_timeout"`
	Refresh              RefreshConfig `koanf:"refresh" mapstructure:"refresh"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "integrations",
		StateTTL:             time.Hour,
		DefaultCredentialTTL: DefaultCredentialTTL,
		UpstreamTimeout:      15 * time.Second,
		Refresh: RefreshConfig{
			Policy:     RefreshPolicyAlways,
			LeadWindow: 5 * time.Minute,
			LockTTL:    30 * time.Second,
			LockWait:   5 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.StateTTL <= 0 {
		return fmt.Errorf("core: state_ttl must be positive")
	}
	if c.DefaultCredentialTTL <= 0 {
		return fmt.Errorf("core: default_credential_ttl must be positive")
	}
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("core: upstream_timeout must not be negative")
	}
	switch c.Refresh.Policy {
	case RefreshPolicyAlways, RefreshPolicyNearExpiry:
	default:
		return fmt.Errorf("core: refresh.policy %q is invalid", c.Refresh.Policy)
	}
	if c.Refresh.LeadWindow < 0 {
		return fmt.Errorf("core: refresh.lead_window must not be negative")
	}
	if c.Refresh.LockTTL <= 0 {
		return fmt.Errorf("core: refresh.lock_ttl must be positive")
	}
	if c.Refresh.LockWait < 0 {
		return fmt.Errorf("core: refresh.lock_wait must not be negative")
	}
	return nil
}

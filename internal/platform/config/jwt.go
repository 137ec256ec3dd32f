package config

import (
	"fmt"
	"time"
)

// JWTConfig configures identity provider ID token verification against a JWKS endpoint.
type JWTConfig struct {
	Issuer   string `yaml:"issuer" env:"JWT_ISSUER"`
	Audience string `yaml:"audience" env:"JWT_AUDIENCE"`
	JWKSURL  string `yaml:"jwks_url" env:"JWT_JWKS_URL"`

	ClockSkew time.Duration `yaml:"clock_skew" env:"JWT_CLOCK_SKEW" env-default:"30s"`
	// Refresh periodically to pick up key rotation even if an old key is still cached.
	JWKSRefreshInterval time.Duration `yaml:"jwks_refresh_interval" env:"JWT_JWKS_REFRESH_INTERVAL" env-default:"5m"`
	// Bound refresh frequency when a token presents an unknown kid (avoid thundering herd).
	JWKSMinRefreshInterval time.Duration `yaml:"jwks_min_refresh_interval" env:"JWT_JWKS_MIN_REFRESH_INTERVAL" env-default:"10s"`

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"JWT_HTTP_TIMEOUT" env-default:"5s"`
}

func (c JWTConfig) Validate() error {
	if c.Issuer == "" || c.Audience == "" || c.JWKSURL == "" {
		return fmt.Errorf("missing required settings: JWT_ISSUER, JWT_AUDIENCE, JWT_JWKS_URL")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW must not be negative")
	}
	return nil
}

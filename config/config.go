// Package config loads the bridge's environment-level configuration.
// The timing knobs and the identity-asset prefix are externally
// configurable on purpose; none of them are hardcoded logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full environment configuration of the bridge.
type Config struct {
	ListenAddr         string `validate:"required"`
	GatewayURL         string `validate:"required,url"`
	WalletConnectorURL string `validate:"required,url"`
	RedisURL           string

	PollInterval        time.Duration `validate:"gt=0"`
	CleanupInterval     time.Duration `validate:"gt=0"`
	WalletCheckInterval time.Duration `validate:"gt=0"`
	MaxPollRetries      int           `validate:"gt=0"`
	PendingTTL          time.Duration `validate:"gt=0"`
	TerminalGrace       time.Duration `validate:"gt=0"`

	IdentityAssetPrefix string `validate:"required"`
}

// Load reads configuration from the environment, with an optional .env
// file for local development.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	var p envParser
	cfg := &Config{
		ListenAddr:          envString("BIFROST_LISTEN_ADDR", ":9100"),
		GatewayURL:          envString("BIFROST_GATEWAY_URL", ""),
		WalletConnectorURL:  envString("BIFROST_WALLET_URL", ""),
		RedisURL:            envString("BIFROST_REDIS_URL", ""),
		PollInterval:        p.duration("BIFROST_POLL_INTERVAL", 10*time.Second),
		CleanupInterval:     p.duration("BIFROST_CLEANUP_INTERVAL", 5*time.Minute),
		WalletCheckInterval: p.duration("BIFROST_WALLET_CHECK_INTERVAL", 15*time.Second),
		MaxPollRetries:      p.integer("BIFROST_MAX_POLL_RETRIES", 10),
		PendingTTL:          p.duration("BIFROST_PENDING_TTL", 30*time.Minute),
		TerminalGrace:       p.duration("BIFROST_TERMINAL_GRACE", 10*time.Minute),
		IdentityAssetPrefix: envString("BIFROST_IDENTITY_ASSET_PREFIX", "222"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envParser parses typed env vars and retains the first parse failure so
// a malformed value rejects the configuration instead of silently falling
// back to a default.
type envParser struct {
	err error
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return parsed
}

func (p *envParser) integer(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return parsed
}

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value for %s: %w", key, err)
	}
}

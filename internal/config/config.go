// Package config loads service configuration from the environment. Every
// knob has a CLINSALUD_ prefixed variable; only the signing secret is
// mandatory outside development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// devSecret keeps local setups running without exporting a secret. It
	// is only honored when CLINSALUD_ENV=development.
	devSecret = "clinsalud-dev-secret-never-in-prod"
)

type Config struct {
	Addr         string
	Environment  string
	DatabaseDSN  string
	RedisAddr    string
	TokenSecret  string
	TokenTTL     time.Duration
	SessionTTL   time.Duration
	AuditLogPath string
}

// Load reads the environment. A missing signing secret is fatal unless the
// environment is explicitly development.
func Load() (Config, error) {
	cfg := Config{
		Addr:         envOr("CLINSALUD_ADDR", ":8080"),
		Environment:  envOr("CLINSALUD_ENV", EnvProduction),
		DatabaseDSN:  os.Getenv("CLINSALUD_PG_DSN"),
		RedisAddr:    os.Getenv("CLINSALUD_REDIS_ADDR"),
		TokenSecret:  os.Getenv("CLINSALUD_AUTH_SECRET"),
		AuditLogPath: envOr("CLINSALUD_AUDIT_LOG", "security.log"),
	}

	var err error
	if cfg.TokenTTL, err = durationOr("CLINSALUD_TOKEN_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationOr("CLINSALUD_SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.TokenSecret) == "" {
		if cfg.Environment != EnvDevelopment {
			return Config{}, errors.New("config: CLINSALUD_AUTH_SECRET is required")
		}
		cfg.TokenSecret = devSecret
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

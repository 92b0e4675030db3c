// Package config validates process configuration from the environment,
// grounded on the teacher's internal/v1/config.ValidateEnv: required
// variables fail closed with an aggregated error, optional variables get
// logged defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"
)

// Config holds validated environment configuration for the room hub.
type Config struct {
	// Required in production; NewVerifier falls into dev-mode if empty.
	SessionSecret string
	// Empty enables dev-mode token acceptance.
	TokenAudience string

	Port string
	GoEnv string

	// AllowedOrigins is empty (deny) in production, or wildcard (allow-all)
	// in development, unless explicitly set.
	AllowedOrigins []string

	DefaultEncryptionRequired bool

	// CacheAddr enables the Metadata Mirror (C3) when non-empty.
	CacheAddr     string
	CachePassword string

	RoomEmptyGrace  time.Duration
	PingInterval    time.Duration
	ActivityTimeout time.Duration

	RateLimitAPIGlobal string
	RateLimitWSIP      string
	RateLimitWSUser    string
}

const (
	defaultPort            = "8080"
	defaultRoomEmptyGrace  = 24 * time.Hour
	defaultPingInterval    = 15 * time.Second
	defaultActivityTimeout = 2 * time.Hour
)

// ValidateEnv reads and validates configuration from the environment.
// Production (GoEnv != "development") refuses to start without
// SESSION_SECRET set, per spec §4.1 ("production startup must refuse to
// boot if the signing secret is unset").
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	isDev := cfg.GoEnv == "development"

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" && !isDev {
		problems = append(problems, "SESSION_SECRET is required outside development")
	} else if cfg.SessionSecret != "" && len(cfg.SessionSecret) < 32 {
		problems = append(problems, fmt.Sprintf("SESSION_SECRET must be at least 32 characters (got %d)", len(cfg.SessionSecret)))
	}

	cfg.TokenAudience = os.Getenv("TOKEN_AUDIENCE")

	cfg.Port = getEnvOrDefault("PORT", defaultPort)
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be a valid port number (got %q)", cfg.Port))
	}

	origins := os.Getenv("ALLOWED_ORIGINS")
	switch {
	case origins != "":
		cfg.AllowedOrigins = strings.Split(origins, ",")
	case isDev:
		cfg.AllowedOrigins = []string{"*"}
	default:
		cfg.AllowedOrigins = nil
	}

	cfg.DefaultEncryptionRequired = os.Getenv("DEFAULT_ENCRYPTION_REQUIRED") == "true"

	cfg.CacheAddr = os.Getenv("CACHE_ADDR")
	cfg.CachePassword = os.Getenv("CACHE_PASSWORD")

	var err error
	if cfg.RoomEmptyGrace, err = getDurationOrDefault("ROOM_EMPTY_GRACE", defaultRoomEmptyGrace); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.PingInterval, err = getDurationOrDefault("PING_INTERVAL", defaultPingInterval); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.ActivityTimeout, err = getDurationOrDefault("ACTIVITY_TIMEOUT", defaultActivityTimeout); err != nil {
		problems = append(problems, err.Error())
	}

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitWSIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWSUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getDurationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration (got %q)", key, v)
	}
	return d, nil
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"session_secret", redactSecret(cfg.SessionSecret),
		"port", cfg.Port,
		"go_env", cfg.GoEnv,
		"allowed_origins", cfg.AllowedOrigins,
		"default_encryption_required", cfg.DefaultEncryptionRequired,
		"cache_enabled", cfg.CacheAddr != "",
		"room_empty_grace", cfg.RoomEmptyGrace,
		"ping_interval", cfg.PingInterval,
		"activity_timeout", cfg.ActivityTimeout,
	)
}

func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}

// Package config loads the proxy configuration from the environment. A
// .env file is honored when present. Required variables abort start-up
// with an error naming the variable; everything else has a safe default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable start-up configuration.
type Config struct {
	RedisURL     string
	RateAPIURL   string
	RateAPIToken string
	Quota        int64

	Port string

	CacheTTL        time.Duration
	RefreshInterval time.Duration
	LockTTL         time.Duration
	LockRetries     int
	LockRetryDelay  time.Duration
	UpstreamTimeout time.Duration

	RevalidatorEnabled bool

	LogLevel  string
	LogPretty bool
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RevalidatorEnabled: true,
	}

	var err error
	if cfg.RedisURL, err = requireEnv("REDIS_URL"); err != nil {
		return nil, err
	}
	if cfg.RateAPIURL, err = requireEnv("RATE_API_URL"); err != nil {
		return nil, err
	}
	if cfg.RateAPIToken, err = requireEnv("RATE_API_TOKEN"); err != nil {
		return nil, err
	}

	quotaStr, err := requireEnv("RATE_API_QUOTA")
	if err != nil {
		return nil, err
	}
	cfg.Quota, err = strconv.ParseInt(quotaStr, 10, 64)
	if err != nil || cfg.Quota <= 0 {
		return nil, fmt.Errorf("RATE_API_QUOTA must be a positive integer, got %q", quotaStr)
	}

	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = durationEnv("REFRESH_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = durationEnv("LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockRetryDelay, err = durationEnv("LOCK_RETRY_DELAY", 150*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockRetries, err = intEnv("LOCK_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.RevalidatorEnabled, err = boolEnv("REVALIDATOR_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.LogPretty, err = boolEnv("LOG_PRETTY", false); err != nil {
		return nil, err
	}

	if cfg.RefreshInterval >= cfg.CacheTTL {
		return nil, fmt.Errorf("REFRESH_INTERVAL (%s) must be below CACHE_TTL (%s)", cfg.RefreshInterval, cfg.CacheTTL)
	}
	if cfg.UpstreamTimeout >= cfg.LockTTL {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT (%s) must be below LOCK_TTL (%s)", cfg.UpstreamTimeout, cfg.LockTTL)
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return b, nil
}

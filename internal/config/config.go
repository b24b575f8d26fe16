package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	MigrateOnStart     bool

	CurrencyCode  string
	CurrencyScale int32
	SessionHeader string

	CartSnapshotTTL time.Duration
	CatalogCacheTTL time.Duration
	IdempotencyTTL  time.Duration

	OrderServiceURL     string
	OrderServiceToken   string
	OrderServiceTimeout time.Duration

	CheckoutRequireClient   bool
	CheckoutLockTTL         time.Duration
	CheckoutRateLimitMax    int
	CheckoutRateLimitWindow time.Duration

	// CatalogRateLimit uses the "<limit>-<period>" format, e.g. "300-M".
	CatalogRateLimit string

	HTTPBodyLimitBytes int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),

		CurrencyCode:  strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "TND")),
		CurrencyScale: int32(parseInt(k.String("CURRENCY_SCALE"), 3)),
		SessionHeader: valueOrDefault(k.String("SESSION_HEADER"), "X-Session-ID"),

		CartSnapshotTTL: parseDuration(k.String("CART_SNAPSHOT_TTL"), "720h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),

		OrderServiceURL:     strings.TrimRight(strings.TrimSpace(k.String("ORDER_SERVICE_URL")), "/"),
		OrderServiceToken:   strings.TrimSpace(k.String("ORDER_SERVICE_TOKEN")),
		OrderServiceTimeout: parseDuration(k.String("ORDER_SERVICE_TIMEOUT"), "10s"),

		CheckoutRequireClient:   parseBool(k.String("CHECKOUT_REQUIRE_CLIENT")),
		CheckoutLockTTL:         parseDuration(k.String("CHECKOUT_LOCK_TTL"), "30s"),
		CheckoutRateLimitMax:    parseInt(k.String("CHECKOUT_RATE_LIMIT_MAX"), 10),
		CheckoutRateLimitWindow: parseDuration(k.String("CHECKOUT_RATE_LIMIT_WINDOW"), "1m"),

		CatalogRateLimit: valueOrDefault(k.String("CATALOG_RATE_LIMIT"), "300-M"),

		HTTPBodyLimitBytes: int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.OrderServiceURL == "" {
		return nil, errors.New("ORDER_SERVICE_URL is required")
	}
	if cfg.CurrencyScale < 0 || cfg.CurrencyScale > 6 {
		return nil, fmt.Errorf("CURRENCY_SCALE must be between 0 and 6, got %d", cfg.CurrencyScale)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

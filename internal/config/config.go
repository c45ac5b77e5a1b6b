package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/gateway"
	"github.com/joho/godotenv"
)

var ErrMissingDomain = errors.New("STOREFRONT_DOMAIN is required")

type Config struct {
	HTTPPort           string
	StorefrontDomain   string
	StorefrontAPIPath  string
	StorefrontToken    string
	RevalidationSecret string
	RedisAddr          string
	RedisPassword      string
	CatalogCacheTTL    time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	GatewayRateLimit   float64
	KafkaBrokers       []string
	KafkaTopic         string
	CookieSecure       bool
	LogLevel           string
	MaxRequestBodySize int64
}

// Load reads .env (if present) and the environment. Variables already set in
// the environment take precedence over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		StorefrontDomain:   gateway.EnsureHTTPS(getEnv("STOREFRONT_DOMAIN", "")),
		StorefrontAPIPath:  getEnv("STOREFRONT_API_PATH", gateway.DefaultAPIPath),
		StorefrontToken:    getEnv("STOREFRONT_ACCESS_TOKEN", ""),
		RevalidationSecret: getEnv("REVALIDATION_SECRET", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_INVALIDATION_TOPIC", "catalog-invalidations"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxRequestBodySize: 1 << 20, // 1MB
	}

	var err error
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GatewayRateLimit, err = strconv.ParseFloat(getEnv("GATEWAY_RATE_LIMIT", "10"), 64); err != nil {
		return nil, fmt.Errorf("GATEWAY_RATE_LIMIT: %w", err)
	}
	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "true")); err != nil {
		return nil, fmt.Errorf("COOKIE_SECURE: %w", err)
	}

	if cfg.StorefrontDomain == "" {
		return nil, ErrMissingDomain
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ABOUTME: Configuration loader for the service desk proxy
// ABOUTME: Loads settings from environment variables with defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port               string
	CORSAllowedOrigins []string // allowed CORS origins (empty = block all cross-origin)

	// Upstream record store
	UpstreamURL            string
	UpstreamTimeout        int  // seconds per upstream call, default 30
	UpstreamRetries        int  // extra attempts on 5xx/network failure, default 1
	UpstreamSkipSSLVerify  bool // explicit opt-in for insecure connections
	UpstreamProxy          string

	// Service account used for elevated calls (audit feed) and, when
	// UseServiceAccount is set, for all delegated calls after login.
	ServiceAccountUser     string
	ServiceAccountPassword string
	UseServiceAccount      bool

	// Sessions
	SessionTTL int    // seconds, default 28800 (8h)
	RedisURL   string // optional; empty selects the in-memory store

	// Display-name cache
	NameCacheTTL int // seconds, default 300 (5 min)

	// Rate Limiting
	RateLimitEnabled bool // Enable rate limiting (default: true)
	RateLimitAuth    int  // Requests per minute for /login (default: 5)
	RateLimitDefault int  // Requests per minute for all other endpoints (default: 100)
}

func Load() (*Config, error) {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: getEnvStringList("CORS_ALLOWED_ORIGINS"),

		UpstreamURL:           ensureScheme(os.Getenv("UPSTREAM_URL")),
		UpstreamTimeout:       getEnvInt("UPSTREAM_TIMEOUT", 30),
		UpstreamRetries:       getEnvInt("UPSTREAM_RETRIES", 1),
		UpstreamSkipSSLVerify: getEnvBool("UPSTREAM_SKIP_SSL_VERIFY", false),
		UpstreamProxy:         os.Getenv("UPSTREAM_ALL_PROXY"),

		ServiceAccountUser:     os.Getenv("SERVICE_ACCOUNT_USER"),
		ServiceAccountPassword: os.Getenv("SERVICE_ACCOUNT_PASSWORD"),
		UseServiceAccount:      getEnvBool("USE_SERVICE_ACCOUNT", false),

		SessionTTL: getEnvInt("SESSION_TTL", 28800),
		RedisURL:   os.Getenv("REDIS_URL"),

		NameCacheTTL: getEnvInt("NAME_CACHE_TTL", 300),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitAuth:    getEnvInt("RATE_LIMIT_AUTH", 5),
		RateLimitDefault: getEnvInt("RATE_LIMIT_DEFAULT", 100),
	}

	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("UPSTREAM_URL is required")
	}
	if cfg.ServiceAccountUser == "" || cfg.ServiceAccountPassword == "" {
		// The audit feed is always fetched with elevated privilege, so the
		// service account is required even when sessions delegate the
		// user's own credential.
		return nil, fmt.Errorf("SERVICE_ACCOUNT_USER and SERVICE_ACCOUNT_PASSWORD are required")
	}

	for _, rl := range []struct {
		name  string
		value int
	}{
		{"RATE_LIMIT_AUTH", cfg.RateLimitAuth},
		{"RATE_LIMIT_DEFAULT", cfg.RateLimitDefault},
	} {
		if rl.value < 1 || rl.value > 10000 {
			return nil, fmt.Errorf("%s must be between 1 and 10000, got %d", rl.name, rl.value)
		}
	}

	if cfg.UpstreamTimeout < 1 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %d", cfg.UpstreamTimeout)
	}
	if cfg.UpstreamRetries < 0 {
		return nil, fmt.Errorf("UPSTREAM_RETRIES must not be negative, got %d", cfg.UpstreamRetries)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvStringList(key string) []string {
	value := os.Getenv(key)
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

// ensureScheme adds https:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "https://" + url
	}
	return url
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// Token lifetimes
	AccessTokenExpiration  time.Duration // access token lifetime (default: 5m)
	AuthCodeExpiration     time.Duration // authorization code lifetime (default: 5m)
	RefreshTokenExpiration time.Duration // refresh token lifetime (default: 720h = 30 days)
	OpSessionExpiration    time.Duration // OP login session lifetime (default: 12h)
	CSRFTokenExpiration    time.Duration // CSRF cookie lifetime (default: 15m)

	// Key rotation
	KeyRotationInterval time.Duration // automatic signing key rotation (default: 24h)

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Redis (optional; enables shared cache and rate limit store)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitEnabled bool
	RateLimitLogin   string // limiter format, e.g. "10-M"
	RateLimitToken   string

	// RBAC cache
	PermissionCacheTTL time.Duration // default: 60s

	// Cookies
	CookieSecure bool
	CookieDomain string

	// Metrics
	MetricsEnabled bool

	// Audit
	AuditEnabled       bool
	AuditBufferSize    int
	AuditRetentionDays int
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "tenauth.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),

		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", 5*time.Minute),
		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 5*time.Minute),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour), // 30 days
		OpSessionExpiration:    getEnvDuration("OP_SESSION_EXPIRATION", 12*time.Hour),
		CSRFTokenExpiration:    getEnvDuration("CSRF_TOKEN_EXPIRATION", 15*time.Minute),

		KeyRotationInterval: getEnvDuration("KEY_ROTATION_INTERVAL", 24*time.Hour),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitLogin:   getEnv("RATE_LIMIT_LOGIN", "10-M"),
		RateLimitToken:   getEnv("RATE_LIMIT_TOKEN", "60-M"),

		PermissionCacheTTL: getEnvDuration("PERMISSION_CACHE_TTL", 60*time.Second),

		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		CookieDomain: getEnv("COOKIE_DOMAIN", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		AuditEnabled:       getEnvBool("AUDIT_ENABLED", true),
		AuditBufferSize:    getEnvInt("AUDIT_BUFFER_SIZE", 1000),
		AuditRetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 90),
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return fmt.Errorf("invalid BASE_URL: %q", c.BaseURL)
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("unsupported DATABASE_DRIVER: %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %q", c.DatabaseDriver)
	}
	if c.AccessTokenExpiration <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRATION must be positive")
	}
	if c.RefreshTokenExpiration <= c.AccessTokenExpiration {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRATION must exceed ACCESS_TOKEN_EXPIRATION")
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

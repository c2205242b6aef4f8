// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis/asynq settings shared by the API (enqueue)
// and the scheduler process (periodic registration and worker).
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetStaleEvaluationInterval() time.Duration
}

// WebhookConfig provides settings for provider webhooks.
type WebhookConfig interface {
	GetWebhookSharedSecret() string
	GetWebhookDedupTTL() time.Duration
	GetWebhookRateLimit() (rps float64, burst int)
	GetPhoneDefaultRegion() string
}

// InternalAPIConfig provides the token guarding operator endpoints.
type InternalAPIConfig interface {
	GetInternalAPIToken() string
}

// CryptoConfig provides the key used to seal raw message bodies at rest.
type CryptoConfig interface {
	GetBodyEncryptionKey() []byte
	IsDevelopment() bool
}

// RulesConfig points at an optional YAML file overriding the built-in default rule set.
type RulesConfig interface {
	GetRulesDefaultsFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	StaleEvaluationInterval time.Duration
	WebhookSharedSecret     string
	WebhookDedupTTL         time.Duration
	WebhookRateLimitRPS     float64
	WebhookRateLimitBurst   int
	PhoneDefaultRegion      string
	InternalAPIToken        string
	BodyEncryptionKey       []byte
	RulesDefaultsFile       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool                 { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string                 { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                  { return c.AsynqConcurrency }
func (c *Config) GetStaleEvaluationInterval() time.Duration { return c.StaleEvaluationInterval }

// WebhookConfig implementation
func (c *Config) GetWebhookSharedSecret() string    { return c.WebhookSharedSecret }
func (c *Config) GetWebhookDedupTTL() time.Duration { return c.WebhookDedupTTL }
func (c *Config) GetWebhookRateLimit() (float64, int) {
	return c.WebhookRateLimitRPS, c.WebhookRateLimitBurst
}
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// InternalAPIConfig implementation
func (c *Config) GetInternalAPIToken() string { return c.InternalAPIToken }

// CryptoConfig implementation
func (c *Config) GetBodyEncryptionKey() []byte { return c.BodyEncryptionKey }
func (c *Config) IsDevelopment() bool          { return strings.EqualFold(c.Env, "development") }

// RulesConfig implementation
func (c *Config) GetRulesDefaultsFile() string { return c.RulesDefaultsFile }

// Load reads configuration from the environment, after loading a .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "lifecycle"),
		AsynqConcurrency:        positiveInt(getEnv("ASYNQ_CONCURRENCY", "1"), 1),
		StaleEvaluationInterval: positiveDuration(getEnv("STALE_EVALUATION_INTERVAL", "5m"), 5*time.Minute),
		WebhookSharedSecret:     getEnv("WEBHOOK_SHARED_SECRET", ""),
		WebhookDedupTTL:         positiveDuration(getEnv("WEBHOOK_DEDUP_TTL", "24h"), 24*time.Hour),
		WebhookRateLimitRPS:     positiveFloat(getEnv("WEBHOOK_RATE_LIMIT_RPS", "20"), 20),
		WebhookRateLimitBurst:   positiveInt(getEnv("WEBHOOK_RATE_LIMIT_BURST", "40"), 40),
		PhoneDefaultRegion:      strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),
		InternalAPIToken:        getEnv("INTERNAL_API_TOKEN", ""),
		RulesDefaultsFile:       getEnv("RULES_DEFAULTS_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	key, err := decodeKey(getEnv("BODY_ENCRYPTION_KEY_BASE64", ""))
	if err != nil {
		return nil, err
	}
	if key == nil && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("BODY_ENCRYPTION_KEY_BASE64 is required outside development")
	}
	cfg.BodyEncryptionKey = key

	return cfg, nil
}

func decodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("BODY_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("BODY_ENCRYPTION_KEY_BASE64 must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func positiveDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func positiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func positiveFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

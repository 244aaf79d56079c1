// Package config loads application configuration from environment
// variables. All variables use the DOORPASSES_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/doorpasses/platform/pkg/observability"
)

// SessionBackend selects the session store implementation.
type SessionBackend string

const (
	SessionBackendPostgres SessionBackend = "postgres"
	SessionBackendRedis    SessionBackend = "redis"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Session       SessionConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds optional Redis configuration for the session backend
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	Backend     SessionBackend
	TTL         time.Duration
	BanCacheTTL time.Duration
	BanCacheLen int
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	RetentionDays int
}

// ObservabilityConfig holds logging/metrics/tracing settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("DOORPASSES_HOST", "0.0.0.0"),
			Port:            getEnv("DOORPASSES_PORT", "8080"),
			ReadTimeout:     getEnvDuration("DOORPASSES_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("DOORPASSES_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("DOORPASSES_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("DOORPASSES_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("DOORPASSES_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DOORPASSES_POSTGRES_URL", "postgres://localhost/doorpasses?sslmode=disable"),
			MaxConns:    getEnvInt("DOORPASSES_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("DOORPASSES_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("DOORPASSES_POSTGRES_TIMEOUT", 5*time.Second),
			MaxLifetime: getEnvDuration("DOORPASSES_POSTGRES_MAX_LIFETIME", time.Hour),
			MaxIdleTime: getEnvDuration("DOORPASSES_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("DOORPASSES_REDIS_URL", ""),
			Password: getEnv("DOORPASSES_REDIS_PASSWORD", ""),
			DB:       getEnvInt("DOORPASSES_REDIS_DB", 0),
		},
		Session: SessionConfig{
			Backend:     SessionBackend(getEnv("DOORPASSES_SESSION_BACKEND", string(SessionBackendPostgres))),
			TTL:         getEnvDuration("DOORPASSES_SESSION_TTL", 30*24*time.Hour),
			BanCacheTTL: getEnvDuration("DOORPASSES_BAN_CACHE_TTL", time.Minute),
			BanCacheLen: getEnvInt("DOORPASSES_BAN_CACHE_LEN", 4096),
		},
		Audit: AuditConfig{
			RetentionDays: getEnvInt("DOORPASSES_AUDIT_RETENTION_DAYS", 90),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("DOORPASSES_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("DOORPASSES_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("DOORPASSES_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("DOORPASSES_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("DOORPASSES_OTEL_SERVICE_NAME", "doorpasses"),
			OTelServiceVersion: getEnv("DOORPASSES_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("DOORPASSES_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field configuration consistency
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DOORPASSES_POSTGRES_URL is required")
	}
	switch c.Session.Backend {
	case SessionBackendPostgres:
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("DOORPASSES_REDIS_URL is required when session backend is redis")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

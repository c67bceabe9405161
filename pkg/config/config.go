package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harborlight/beacon/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database is the PostgreSQL connection for profiles, submissions
	// and the audit trail.
	Database DatabaseConfig

	// Redis holds the session store connection.
	Redis RedisConfig

	// AuthBackend is the hosted auth service (identities, OIDC sign-in,
	// password recovery).
	AuthBackend AuthBackendConfig

	// Session holds cookie and idle-expiry settings.
	Session SessionConfig

	// Audit holds retention settings for the audit trail.
	Audit AuditConfig

	// Observability configuration
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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// AuthBackendConfig holds the hosted auth service configuration.
// ServiceRoleKey is the privileged credential for identity admin calls;
// handlers that need it answer 500 when it is missing.
type AuthBackendConfig struct {
	BaseURL        string
	ServiceRoleKey string

	// OIDC sign-in against the backend's issuer
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	CookieName   string
	CookieSecure bool

	// IdleTimeout is how long a session survives without activity.
	// Default 30 minutes, matching the dashboard's inactivity monitor.
	IdleTimeout time.Duration

	// MaxLifetime caps a session regardless of activity.
	MaxLifetime time.Duration
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// RetentionDays is how long audit entries are kept before the purge
	// job removes them. Zero disables purging.
	RetentionDays int

	// PurgeSchedule is a cron expression for the retention job.
	PurgeSchedule string
}

// ObservabilityConfig holds observability settings
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
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		AuthBackend:   loadAuthBackendConfig(),
		Session:       loadSessionConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BEACON_HOST", "0.0.0.0"),
		Port:            getEnv("BEACON_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BEACON_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BEACON_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BEACON_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BEACON_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("BEACON_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("BEACON_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("BEACON_POSTGRES_MAX_CONNS", 20),
		MaxIdleConns: getEnvInt("BEACON_POSTGRES_IDLE_CONNS", 5),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("BEACON_REDIS_URL", "redis://localhost:6379"),
		Password: getEnv("BEACON_REDIS_PASSWORD", ""),
		DB:       getEnvInt("BEACON_REDIS_DB", 0),
	}
}

func loadAuthBackendConfig() AuthBackendConfig {
	return AuthBackendConfig{
		BaseURL:          getEnv("BEACON_AUTH_BASE_URL", ""),
		ServiceRoleKey:   getEnv("BEACON_AUTH_SERVICE_ROLE_KEY", ""),
		OIDCIssuerURL:    getEnv("BEACON_OIDC_ISSUER_URL", ""),
		OIDCClientID:     getEnv("BEACON_OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("BEACON_OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("BEACON_OIDC_REDIRECT_URL", ""),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		CookieName:   getEnv("BEACON_SESSION_COOKIE", "beacon_session"),
		CookieSecure: getEnvBool("BEACON_SESSION_COOKIE_SECURE", true),
		IdleTimeout:  getEnvDuration("BEACON_SESSION_IDLE_TIMEOUT", 30*time.Minute),
		MaxLifetime:  getEnvDuration("BEACON_SESSION_MAX_LIFETIME", 12*time.Hour),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetentionDays: getEnvInt("BEACON_AUDIT_RETENTION_DAYS", 90),
		PurgeSchedule: getEnv("BEACON_AUDIT_PURGE_SCHEDULE", "30 2 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("BEACON_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BEACON_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BEACON_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BEACON_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BEACON_OTEL_SERVICE_NAME", "beacon"),
		OTelServiceVersion: getEnv("BEACON_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BEACON_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.AuthBackend.BaseURL == "" {
		return fmt.Errorf("auth backend base URL is required")
	}
	// ServiceRoleKey is deliberately NOT validated here: the server can
	// run without it, but user provisioning endpoints answer 500 until
	// it is set.

	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

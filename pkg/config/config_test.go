package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BEACON_POSTGRES_URL", "postgres://localhost/beacon?sslmode=disable")
	t.Setenv("BEACON_AUTH_BASE_URL", "https://auth.example.org")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "beacon_session", cfg.Session.CookieName)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BEACON_PORT", "8181")
	t.Setenv("BEACON_SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("BEACON_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("BEACON_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{URL: "postgres://localhost/beacon"},
			Redis:    RedisConfig{URL: "redis://localhost:6379"},
			AuthBackend: AuthBackendConfig{
				BaseURL: "https://auth.example.org",
			},
			Session: SessionConfig{IdleTimeout: 30 * time.Minute},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing postgres URL", func(t *testing.T) {
		cfg := base()
		cfg.Database.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing auth base URL", func(t *testing.T) {
		cfg := base()
		cfg.AuthBackend.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("service role key may be absent", func(t *testing.T) {
		cfg := base()
		cfg.AuthBackend.ServiceRoleKey = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("same server and health port", func(t *testing.T) {
		cfg := base()
		cfg.Server.HealthPort = cfg.Server.Port
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive idle timeout", func(t *testing.T) {
		cfg := base()
		cfg.Session.IdleTimeout = 0
		assert.Error(t, cfg.Validate())
	})
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("API_KEY", "service-key")
	t.Setenv("TENANT_SECRET_KEY", "tenant-secret")
	t.Setenv("DB_DRIVER", "sqlite3")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite3", cfg.DB.Driver)
	require.Equal(t, 15, cfg.AccessTTLMin)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL())
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
	require.Equal(t, 5, cfg.LoginMaxFailures)
	require.Equal(t, 15*time.Minute, cfg.LoginFailureWindow)
	require.Equal(t, DefaultAllowedOrigins, cfg.AllowedOrigins)
	require.Equal(t, "auth.events", cfg.Events.Queue)
	require.Empty(t, cfg.MQTT.BrokerURL)
}

func TestLoadReportsEveryMissingKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("API_KEY", "")
	t.Setenv("TENANT_SECRET_KEY", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"JWT_SECRET", "API_KEY", "TENANT_SECRET_KEY", "DB_USER", "DB_NAME"} {
		require.ErrorContains(t, err, key)
	}
}

func TestLoadRejectsShortSecretAndSharedKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("TENANT_SECRET_KEY", "service-key")

	_, err := Load()
	require.ErrorContains(t, err, "at least 32 bytes")
	require.ErrorContains(t, err, "must differ")
}

func TestLoadParsesOriginsAndOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", " https://app.example.com ,,http://localhost:8080")
	t.Setenv("LOGIN_MAX_FAILURES", "3")
	t.Setenv("LOGIN_FAILURE_WINDOW", "90s")
	t.Setenv("MQTT_NOTIFY_PREFIX", "iot/auth/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://app.example.com", "http://localhost:8080"}, cfg.AllowedOrigins)
	require.Equal(t, 3, cfg.LoginMaxFailures)
	require.Equal(t, 90*time.Second, cfg.LoginFailureWindow)
	require.Equal(t, "iot/auth", cfg.MQTT.TopicPrefix)
}

func TestLoadRejectsBadInt(t *testing.T) {
	setRequired(t)
	t.Setenv("BCRYPT_COST", "twelve")

	_, err := Load()
	require.ErrorContains(t, err, "BCRYPT_COST")
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	require.Equal(t, 1, cfg.Capacity)
	require.Equal(t, 5*time.Second, cfg.TTL)
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "DATABASE_PATH", "JWT_SECRET", "JWT_EXPIRATION_HOURS", "ALLOWED_ORIGINS", "SENTRY_DSN"} {
		t.Setenv(k, "") // restores the original value after the test
		os.Unsetenv(k)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "lendlog.db", cfg.DatabasePath)
	assert.Equal(t, devSecret, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.SentryDSN)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_PATH", "/data/lendlog.db")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "2")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/data/lendlog.db", cfg.DatabasePath)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_PATH", "test.db")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveExpiry(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DATABASE_PATH", "test.db")
	t.Setenv("JWT_EXPIRATION_HOURS", "0")

	_, err := Load()
	assert.Error(t, err)
}

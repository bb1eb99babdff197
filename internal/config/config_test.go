package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fintera")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev-secret-change-in-production", cfg.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 15*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/fintera")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("BASE_CURRENCY", "dirham")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("BASE_CURRENCY", "usd")
	t.Setenv("LOCK_TTL_SECONDS", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenExpiration)
	assert.Equal(t, 5*time.Minute, cfg.AuthCodeExpiration)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenExpiration)
	assert.Equal(t, 12*time.Hour, cfg.OpSessionExpiration)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 60*time.Second, cfg.PermissionCacheTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRATION", "10m")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=localhost user=test")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("AUDIT_BUFFER_SIZE", "500")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.AccessTokenExpiration)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "host=localhost user=test", cfg.DatabaseDSN)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 500, cfg.AuditBufferSize)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.DatabaseDriver = "oracle"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.DatabaseDSN = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.RefreshTokenExpiration = time.Minute
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.RedisEnabled = true
	bad.RedisAddr = ""
	assert.Error(t, bad.Validate())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8991, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Zero(t, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 1000, cfg.Fetch.DefaultMaxRows)
	assert.Equal(t, 8, cfg.Registry.ShutdownWorkers)
	assert.Equal(t, "0.0.0.0:8991", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TRINODBC_SERVER_PORT", "9000")
	t.Setenv("TRINODBC_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("TRINODBC_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("TRINODBC_RATELIMIT_REQUESTS_PER_MINUTE", "120")
	t.Setenv("TRINODBC_FETCH_DEFAULT_MAX_ROWS", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 50, cfg.Fetch.DefaultMaxRows)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	cfg := valid()
	cfg.Server.Port = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)

	cfg = valid()
	cfg.Server.Port = 70000
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)

	cfg = valid()
	cfg.Fetch.DefaultMaxRows = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidMaxRows)

	cfg = valid()
	cfg.RateLimit.Burst = -1
	assert.Error(t, cfg.Validate())
}

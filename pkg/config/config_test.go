package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

var testDefaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.port":             8991,
	"server.shutdown_timeout": "10s",
	"log.level":               "INFO",
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, load("", nil, "TEST_", testDefaults, &cfg))

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8991, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	environ := []string{
		"TEST_SERVER_PORT=9000",
		"TEST_SERVER_SHUTDOWN_TIMEOUT=3s",
		"OTHER_SERVER_PORT=1",
		"MALFORMED",
	}
	var cfg testConfig
	require.NoError(t, load("", environ, "TEST_", testDefaults, &cfg))

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_DotEnvFileBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_LOG_LEVEL=DEBUG\nTEST_SERVER_PORT=7000\n"), 0o600))

	var cfg testConfig
	require.NoError(t, load(path, []string{"TEST_SERVER_PORT=7100"}, "TEST_", testDefaults, &cfg))

	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	var cfg testConfig
	err := load(filepath.Join(t.TempDir(), "missing.env"), nil, "TEST_", testDefaults, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 8991, cfg.Server.Port)
}

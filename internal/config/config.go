package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	pkgconfig "github.com/kartikbazzad/bunbase/trinodbc/pkg/config"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TRINODBC_"

// Config holds trinodbc server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Registry  RegistryConfig  `mapstructure:"registry"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RateLimitConfig limits requests per client IP. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// CORSConfig sets the allowed origin. Empty disables CORS headers.
type CORSConfig struct {
	Origin string `mapstructure:"origin"`
}

type FetchConfig struct {
	DefaultMaxRows int `mapstructure:"default_max_rows"`
}

type RegistryConfig struct {
	ShutdownWorkers int `mapstructure:"shutdown_workers"`
}

// Defaults returns the default value of every configuration key.
func Defaults() map[string]any {
	return map[string]any{
		"server.host":                   "0.0.0.0",
		"server.port":                   8991,
		"server.shutdown_timeout":       "10s",
		"log.level":                     "INFO",
		"log.format":                    "json",
		"auth.jwt_secret":               "",
		"ratelimit.requests_per_minute": 0,
		"ratelimit.burst":               0,
		"cors.origin":                   "",
		"fetch.default_max_rows":        1000,
		"registry.shutdown_workers":     8,
	}
}

// Load reads configuration from defaults, .env and TRINODBC_* variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(EnvPrefix, Defaults(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

var (
	ErrInvalidPort    = errors.New("server.port must be between 1 and 65535")
	ErrInvalidMaxRows = errors.New("fetch.default_max_rows must be positive")
)

// Validate returns an error if a value is out of range.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Fetch.DefaultMaxRows < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxRows, c.Fetch.DefaultMaxRows)
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("ratelimit values must not be negative")
	}
	return nil
}

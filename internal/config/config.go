// Package config loads application configuration.
//
// Sources are applied in order: built-in defaults, an optional YAML file,
// then CAMPUS_-prefixed environment variables. Nested keys are separated by
// a double underscore, e.g. CAMPUS_API__BASE_URL sets api.base_url.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CAMPUS_"

// Config is the root configuration.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Session SessionConfig `koanf:"session"`
	Cache   CacheConfig   `koanf:"cache"`
	Log     LogConfig     `koanf:"log"`
	Notify  NotifyConfig  `koanf:"notify"`
	Sandbox SandboxConfig `koanf:"sandbox"`
}

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst     int           `koanf:"burst" validate:"gte=0"`
}

// SessionConfig configures the local session file.
type SessionConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	Backend  string        `koanf:"backend" validate:"oneof=memory redis"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
	RedisURL string        `koanf:"redis_url" validate:"required_if=Backend redis"`
	Prefix   string        `koanf:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// NotifyConfig configures where notifications are delivered besides the
// terminal.
type NotifyConfig struct {
	MattermostWebhook string        `koanf:"mattermost_webhook" validate:"omitempty,url"`
	MattermostChannel string        `koanf:"mattermost_channel"`
	MattermostTimeout time.Duration `koanf:"mattermost_timeout" validate:"gte=0"`
}

// SandboxConfig configures the in-memory API sandbox.
type SandboxConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	JWTSecret         string        `koanf:"jwt_secret" validate:"required,min=16"`
	TokenDuration     time.Duration `koanf:"token_duration" validate:"gt=0"`
	AdminEmail        string        `koanf:"admin_email" validate:"omitempty,email"`
	AdminPassword     string        `koanf:"admin_password"`
	AllowedOrigins    []string      `koanf:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:3001",
			Timeout:   15 * time.Second,
			RateLimit: 10,
			Burst:     5,
		},
		Session: SessionConfig{
			Path: defaultSessionPath(),
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     5 * time.Minute,
			Prefix:  "campus:query:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			MattermostTimeout: 10 * time.Second,
		},
		Sandbox: SandboxConfig{
			Host:              "127.0.0.1",
			Port:              "3001",
			MetricsPort:       "9091",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			JWTSecret:         "campus-sandbox-secret-key",
			TokenDuration:     24 * time.Hour,
			AdminEmail:        "admin@example.com",
			AdminPassword:     "admin123",
			AllowedOrigins:    []string{"*"},
		},
	}
}

// Load builds the configuration. path may be empty; a missing file at an
// explicitly given path is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey maps CAMPUS_API__BASE_URL to api.base_url.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "campus", "session.json")
}

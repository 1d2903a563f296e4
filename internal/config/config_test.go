package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Session.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campus.yaml")
	content := `
api:
  base_url: https://school.example.com/api
  timeout: 5s
cache:
  ttl: 1m
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CAMPUS_SESSION__PATH", filepath.Join(dir, "session.json"))
	t.Setenv("CAMPUS_LOG__LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://school.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, filepath.Join(dir, "session.json"), cfg.Session.Path)
	// env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched defaults survive
	assert.Equal(t, 5, cfg.API.Burst)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad base url",
			mutate:  func(c *Config) { c.API.BaseURL = "not a url" },
			wantErr: "BaseURL",
		},
		{
			name:    "redis backend requires url",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "RedisURL",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "Backend",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: "Level",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Sandbox.JWTSecret = "short" },
			wantErr: "JWTSecret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "api.base_url", envKey("CAMPUS_API__BASE_URL"))
	assert.Equal(t, "cache.redis_url", envKey("CAMPUS_CACHE__REDIS_URL"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{Port: 8080},
		Auth:       AuthConfig{JWTSecret: "secret"},
		Database:   DatabaseConfig{Path: "data/invoices.db"},
		Logger:     LoggerConfig{Format: "json"},
		Extraction: ExtractionConfig{ConfidenceThreshold: 0.95},
		Storage:    StorageConfig{BaseDir: "data/files"},
		Reminders:  RemindersConfig{Enabled: true, Interval: time.Hour, SLADays: 3},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"no storage", func(c *Config) { c.Storage.BaseDir = "" }, "storage.base_dir"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"lark without secret", func(c *Config) { c.Lark.AppID = "cli_1" }, "lark.app_secret"},
		{"threshold zero", func(c *Config) { c.Extraction.ConfidenceThreshold = 0 }, "confidence_threshold"},
		{"threshold above one", func(c *Config) { c.Extraction.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"reminder interval", func(c *Config) { c.Reminders.Interval = 0 }, "reminders.interval"},
		{"sla days", func(c *Config) { c.Reminders.SLADays = 0 }, "sla_days"},
		{"reminders disabled", func(c *Config) { c.Reminders = RemindersConfig{} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  allowed_origins: ["http://localhost:5173"]
auth:
  jwt_secret: from-file
reminders:
  sla_days: 5
  interval: 30m
`), 0o644))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("LARK_APP_ID", "cli_1")
	t.Setenv("LARK_APP_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Lark.Enabled())
	assert.Equal(t, 5, cfg.Reminders.SLADays)
	assert.Equal(t, 30*time.Minute, cfg.Reminders.Interval)
	assert.Equal(t, 0.95, cfg.Extraction.ConfidenceThreshold)
	assert.Equal(t, "30-M", cfg.Server.RateLimit)
	assert.False(t, cfg.OpenAI.Enabled())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=dotenv-secret\n"), 0o644))
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Auth.JWTSecret)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Lark        LarkConfig        `mapstructure:"lark"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Extraction  ExtractionConfig  `mapstructure:"extraction"`
	BookingForm BookingFormConfig `mapstructure:"booking_form"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Reminders   RemindersConfig   `mapstructure:"reminders"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      string        `mapstructure:"rate_limit"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LarkConfig holds Lark API configuration. Without an app ID, emails are
// only logged.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// Enabled reports whether Lark delivery is configured
func (c LarkConfig) Enabled() bool {
	return c.AppID != ""
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Enabled reports whether field extraction is configured
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// ExtractionConfig holds the review threshold of extracted fields
type ExtractionConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// BookingFormConfig holds contractor booking form settings
type BookingFormConfig struct {
	TemplatePath string `mapstructure:"template_path"`
}

// StorageConfig holds file storage settings
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// RemindersConfig holds the SLA reminder job settings
type RemindersConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	SLADays  int           `mapstructure:"sla_days"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment. A .env file in the working directory is loaded first.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Environment variables win over the config file
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", "30-M")

	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("extraction.confidence_threshold", 0.95)

	v.SetDefault("storage.base_dir", "data/files")

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.interval", time.Hour)
	v.SetDefault("reminders.sla_days", 3)
}

// bindEnvVars binds the conventional names of secrets
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("logger.format must be json or console")
	}

	if c.Lark.Enabled() && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}

	if t := c.Extraction.ConfidenceThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("extraction.confidence_threshold must be in (0, 1]")
	}

	if c.Reminders.Enabled {
		if c.Reminders.Interval <= 0 {
			return fmt.Errorf("reminders.interval must be positive")
		}
		if c.Reminders.SLADays < 1 {
			return fmt.Errorf("reminders.sla_days must be at least 1")
		}
	}

	return nil
}

package config

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Compliance ComplianceConfig `yaml:"compliance" mapstructure:"compliance"`
	Refresh    RefreshConfig    `yaml:"refresh" mapstructure:"refresh"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Alerts     AlertsConfig     `yaml:"alerts" mapstructure:"alerts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the covenant/alert database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	HaikuModel  string  `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ExtractionConfig configures covenant extraction.
type ExtractionConfig struct {
	// Provider is "anthropic" or "fixture".
	Provider      string `yaml:"provider" mapstructure:"provider"`
	FixturePath   string `yaml:"fixture_path" mapstructure:"fixture_path"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTextChars  int    `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// Timeout returns the per-call extraction timeout.
func (c ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ComplianceConfig selects the thresholding policy.
type ComplianceConfig struct {
	Policy       string  `yaml:"policy" mapstructure:"policy"`
	WarningBand  float64 `yaml:"warning_band" mapstructure:"warning_band"`
	WarningRatio float64 `yaml:"warning_ratio" mapstructure:"warning_ratio"`
}

// RefreshConfig configures the periodic metric refresh.
type RefreshConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// MetricsConfig configures the external metrics source.
type MetricsConfig struct {
	// Source is "sqlite", "postgres", "http" or "none".
	Source       string  `yaml:"source" mapstructure:"source"`
	DatabaseURL  string  `yaml:"database_url" mapstructure:"database_url"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLSecs int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// AlertsConfig configures alert delivery and summaries.
type AlertsConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	SummaryWindowDays int    `yaml:"summary_window_days" mapstructure:"summary_window_days"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COVENANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "covenant.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("anthropic.rate_per_sec", 2.0)
	v.SetDefault("extraction.provider", "anthropic")
	v.SetDefault("extraction.timeout_secs", 60)
	v.SetDefault("extraction.max_text_chars", 8000)
	v.SetDefault("extraction.retry_attempts", 3)
	v.SetDefault("compliance.policy", "banded")
	v.SetDefault("compliance.warning_band", 0.10)
	v.SetDefault("compliance.warning_ratio", 0.95)
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.schedule", "@every 15m")
	v.SetDefault("metrics.source", "none")
	v.SetDefault("metrics.rate_per_sec", 5.0)
	v.SetDefault("metrics.timeout_secs", 15)
	v.SetDefault("metrics.cache_ttl_secs", 60)
	v.SetDefault("alerts.summary_window_days", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings and the refresh schedule.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	switch c.Extraction.Provider {
	case "anthropic", "fixture":
	default:
		return eris.Errorf("config: unsupported extraction provider %q", c.Extraction.Provider)
	}
	if c.Extraction.Provider == "fixture" && c.Extraction.FixturePath == "" {
		return eris.New("config: extraction.fixture_path is required for the fixture provider")
	}
	switch c.Compliance.Policy {
	case "banded", "symmetric":
	default:
		return eris.Errorf("config: unsupported compliance policy %q", c.Compliance.Policy)
	}
	switch c.Metrics.Source {
	case "none", "sqlite", "postgres", "http":
	default:
		return eris.Errorf("config: unsupported metrics source %q", c.Metrics.Source)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Alerts.SummaryWindowDays < 1 {
		return eris.Errorf("config: alerts.summary_window_days must be positive, got %d", c.Alerts.SummaryWindowDays)
	}
	if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
		return eris.Wrapf(err, "config: invalid refresh schedule %q", c.Refresh.Schedule)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

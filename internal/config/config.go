package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr,omitempty"`

	// Store: sqlite (modernc), sqlite3 (cgo) or postgres.
	StoreDriver string `mapstructure:"store_driver" yaml:"store_driver,omitempty"`
	StoreDSN    string `mapstructure:"store_dsn" yaml:"store_dsn,omitempty"`
	UploadDir   string `mapstructure:"upload_dir" yaml:"upload_dir,omitempty"`

	FillValue       string `mapstructure:"fill_value" yaml:"fill_value,omitempty"`
	ForecastHorizon int    `mapstructure:"forecast_horizon" yaml:"forecast_horizon,omitempty"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format,omitempty"`

	// Widget code generation (Ollama-compatible chat endpoint)
	GeneratorHost       string `mapstructure:"generator_host" yaml:"generator_host,omitempty"`
	GeneratorModel      string `mapstructure:"generator_model" yaml:"generator_model,omitempty"`
	GeneratorTimeoutSec int    `mapstructure:"generator_timeout_sec" yaml:"generator_timeout_sec,omitempty"`

	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts,omitempty"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms,omitempty"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms,omitempty"`
}

// Dir is the per-user directory holding config.yaml, the default database
// and uploads.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".nimbus"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.nimbus/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("NIMBUS")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("store_dsn", "")
	v.SetDefault("upload_dir", "")
	v.SetDefault("fill_value", "N/A")
	v.SetDefault("forecast_horizon", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("generator_host", "http://127.0.0.1:11434")
	v.SetDefault("generator_model", "llama3.1")
	v.SetDefault("generator_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// an explicit file must exist; the default one is optional
		if _, missing := err.(viper.ConfigFileNotFoundError); cfgFile != "" || !missing {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.StoreDSN == "" && c.StoreDriver != "postgres" {
		c.StoreDSN = filepath.Join(dir, "nimbus.db")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(dir, "uploads")
	}
	return &c, nil
}

// GeneratorTimeout returns the generator request timeout.
func (c *Global) GeneratorTimeout() time.Duration {
	return time.Duration(c.GeneratorTimeoutSec) * time.Second
}

// Logger builds the process logger from log_level and log_format.
func (c *Global) Logger(w io.Writer) *slog.Logger {
	return NewLogger(w, c.LogLevel, c.LogFormat)
}

// NewLogger returns a text or json slog logger at the named level. Unknown
// levels fall back to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

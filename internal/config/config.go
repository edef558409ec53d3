// Package config provides configuration management for fetcharr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultStallTimeout  = 120 * time.Second
	defaultMaxRetries    = 3
	defaultBaseBackoff   = 5 * time.Second
	defaultProbeTimeout  = 30 * time.Second
	defaultEncodersQuery = 10 * time.Second
	defaultMaxHeight     = "1080p"
	defaultFramerate     = "60"
)

// Config holds all configuration for the application.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Download DownloadConfig `mapstructure:"download"`
	History  HistoryConfig  `mapstructure:"history"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ToolsConfig holds the external tool binaries and their tuning knobs.
type ToolsConfig struct {
	YtDlp   string `mapstructure:"ytdlp"`
	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`

	StallTimeout time.Duration `mapstructure:"stall_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// Verbose passes verbose flags through to the external tools.
	Verbose bool `mapstructure:"verbose"`
}

// HistoryConfig holds the job history store configuration.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fetcharr")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/fetcharr")
		v.AddConfigPath("/etc/fetcharr")
	}

	v.SetEnvPrefix("FETCHARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// Called before reading the config file so file values override them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)

	v.SetDefault("tools.ytdlp", "yt-dlp")
	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.ffprobe", "ffprobe")
	v.SetDefault("tools.stall_timeout", defaultStallTimeout)
	v.SetDefault("tools.max_retries", defaultMaxRetries)
	v.SetDefault("tools.base_backoff", defaultBaseBackoff)
	v.SetDefault("tools.probe_timeout", defaultProbeTimeout)

	v.SetDefault("download.dest_dir", ".")
	v.SetDefault("download.video_codec", string(VcodecBest))
	v.SetDefault("download.audio_codec", string(AcodecAuto))
	v.SetDefault("download.max_height", defaultMaxHeight)
	v.SetDefault("download.max_framerate", defaultFramerate)
	v.SetDefault("download.cookies_browser", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "fetcharr-history.db")
}

// Validate checks the non-download sections; DownloadConfig has its own
// Validate because it is also populated per-invocation from flags.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	if c.Tools.MaxRetries < 1 {
		return fmt.Errorf("tools.max_retries must be >= 1, got %d", c.Tools.MaxRetries)
	}
	if c.Tools.StallTimeout <= 0 {
		return errors.New("tools.stall_timeout must be positive")
	}
	return nil
}

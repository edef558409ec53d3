// Package cmd implements the CLI commands for fetcharr.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/observability"
	"github.com/fetcharr/fetcharr/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// logger is the process-wide logger, configured in PersistentPreRunE.
var logger *slog.Logger

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "fetcharr",
	Short:   "Media downloader with editor-friendly post-processing",
	Version: version.Short(),
	Long: `fetcharr drives yt-dlp to fetch media from the web, then remuxes or
re-encodes the result through ffmpeg so it imports cleanly into
non-linear editors or matches a requested codec target.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		initLogging()
		return nil
	}

	// These flags are not bound to viper; Changed() overrides preserve the
	// priority CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ~/.config/fetcharr, /etc/fetcharr)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("verbose", false, "pass verbose flags through to yt-dlp and ffmpeg")
}

// initConfig reads the config file and FETCHARR_* environment variables.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fetcharr")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/fetcharr")
		viper.AddConfigPath("/etc/fetcharr")
	}

	viper.SetEnvPrefix("FETCHARR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the process logger. --debug forces debug level;
// otherwise explicit flags win over env and config values.
func initLogging() {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
		level = "debug"
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}
	logger = observability.NewLogger(logCfg)
	slog.SetDefault(logger)
}

// loadConfig unmarshals the merged viper state into the typed Config.
func loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		cfg.Tools.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

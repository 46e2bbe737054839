// Package cmd implements the CLI commands for pseudotv.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/observability"
	"github.com/pseudotv/pseudotv/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "pseudotv",
	Short:   "Synthesize live TV channels from on-demand video sources",
	Version: version.Short(),
	Long: `pseudotv builds a continuous broadcast experience out of on-demand
video catalogs. It generates a per-channel program schedule, exports an
XMLTV guide and M3U lineup for IPTV clients, and streams whatever is
"currently airing" on each channel as MPEG-TS.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadConfig loads and validates configuration, applying any log flag
// overrides, and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	// CLI flags override config/env only when explicitly set.
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format, _ = cmd.Flags().GetString("log-format")
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	return cfg, nil
}

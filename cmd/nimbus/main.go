package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wdm0006/nimbus/internal/config"
)

var version = "0.1.0-dev"

var (
	cfgFile string
	debug   bool

	cfg    *config.Global
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "nimbus",
	Short:         "Nimbus: reusable data-cleaning widgets for CSV reports",
	Long:          `Nimbus stores data-cleaning widgets, applies ordered widget chains to uploaded tables and serves reports, previews, exports and forecasts over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if debug {
			c.LogLevel = "debug"
		}
		cfg = c
		logger = c.Logger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.nimbus/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Package cmd defines the CLI commands for the contact-crawler executable.
package cmd

import (
	"fmt"
	"os"

	// Loads a local .env into the process environment before viper's
	// AutomaticEnv pass reads CONTACT_* overrides.
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/config"
	"github.com/leadfinch/contact-crawler/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact-crawler",
		Short: "Extracts contact details from lists of websites.",
		Long: `contact-crawler visits each site, finds its contact page, and pulls
out de-duplicated e-mail addresses and phone numbers. It runs either as
a one-shot CLI extraction or as an HTTP service producing downloadable
CSV reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults rule when omitted)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExtractCmd())

	return cmd
}

// loadConfig reads the optional config file plus CONTACT_* environment
// overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// initLogger builds the zap logger and installs it as the process
// global so package-level helpers share it.
func initLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

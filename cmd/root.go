// Package cmd provides CLI commands for the netcup dyndns tool.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kreigan/netcup-dyndns/internal/config"
	"github.com/kreigan/netcup-dyndns/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "netcup-dyndns",
	Short: "Keep netcup DNS zones in sync with a desired host state",
	Long: `A dyndns tool for the netcup CCP DNS webservice.

It reconciles the host records of one or more zones against a desired state:
explicit hostname/destination mappings from a hosts file, or the machine's
current external IP. One hostname may own both an A and an AAAA record at
the same time (dual-stack); any other record type replaces whatever record
the hostname had before. Writes that would not change anything are
suppressed to avoid needless SOA serial churn.

API credentials are read from a YAML settings file (--config).`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP(
		"config", "c", "", "Path to the YAML settings file with API credentials")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format (structured logging)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	if err := rootCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(fmt.Sprintf("failed to mark config as required: %v", err))
	}
}

// newLogger builds a logger from the persistent output flags.
func newLogger(cmd *cobra.Command) (*logger.Logger, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, fmt.Errorf("failed to get json flag: %w", err)
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, fmt.Errorf("failed to get no-color flag: %w", err)
	}

	return logger.New(logger.Options{
		Verbose: verbose,
		JSON:    jsonOutput,
		NoColor: noColor,
	}), nil
}

// loadSettings loads the settings file named by the --config flag.
func loadSettings(cmd *cobra.Command, log *logger.Logger) (*config.Settings, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	log.Debug("loading settings from %s", path)
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	log.Debug("API URL: %s", settings.APIURL)
	log.Debug("API key: %s", logger.MaskSecret(settings.APIKey))
	log.Debug("customer number: %s", settings.CustomerNumber)

	return settings, nil
}

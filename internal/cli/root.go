// Package cli defines the cobra command tree for matchmaker.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/evcraddock/matchmaker/internal/client"
	"github.com/evcraddock/matchmaker/internal/config"
)

var (
	flagFormat string
	flagDB     string
	flagConfig string
	flagServer string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mm",
		Short:         "Match investors to rental properties",
		Long:          "Score and rank investor/property matches, send deduplicated match notifications, and manage the notification ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.config/mm/matchmaker.db)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ~/.config/mm/config.yaml)")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "API server URL (default: from config)")

	root.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newMatchesCmd(),
		newNotifyCmd(),
		newLedgerCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	return cfg, nil
}

// newAPIClient creates an HTTP client for the matchmaker API.
func newAPIClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.ServerURL), nil
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// Package cmd implements the facetql command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/facetql/cli/output"
	"github.com/fluxbase-eu/facetql/internal/config"
	"github.com/fluxbase-eu/facetql/internal/logutil"
)

var (
	configFile   string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "facetql",
	Short: "Scholarly metadata query service",
	Long: `facetql compiles flat filter strings and query objects into search
index queries and serves the results over HTTP.

Examples:
  facetql serve
  facetql fields works
  facetql compile works --filter publication_year:2020,type:article
  facetql oqo validate query.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := os.Setenv(config.ConfigEnv, configFile); err != nil {
				return fmt.Errorf("failed to set config path: %w", err)
			}
		}
		_, err := output.ParseFormat(outputFormat)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./facetql.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(oqoCmd)
	rootCmd.AddCommand(schemaCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logutil.Setup(cfg.Logging)
	return cfg, nil
}

// GetFormatter returns a formatter for the --output flag.
func GetFormatter(cmd *cobra.Command) *output.Formatter {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		format = output.FormatTable
	}
	return output.NewFormatter(format, cmd.OutOrStdout())
}

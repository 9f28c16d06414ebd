package cmd

import (
	"github.com/spf13/cobra"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "logrouter",
	Short: "Ship CloudWatch Logs subscription batches into daily search indices",
	Long: `logrouter decodes CloudWatch Logs subscription envelopes delivered by
Kinesis or Firehose, normalizes each log line into a search document and
bulk-writes the documents into per-service daily indices.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file or directory (default searches ./ and ./config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

func initConfig() error {
	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = config.NormalizeLevel(logLevel)
	}
	cfg = loaded

	logging.Setup(cfg.Logging, nil)
	return nil
}

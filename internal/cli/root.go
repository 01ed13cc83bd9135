package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "track",
	Short: "Inspect and serve tracked experiment metadata",
	Long: `track records machine-learning experiment metadata: projects, trial
groups, and trials with their parameters, metrics and statuses.

The CLI reads a storage written by the client library, lists its contents,
serves it over a JSON API, and manages SQL schema migrations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// Persistent flags
var (
	storageURI string
	logLevel   string
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&storageURI, "storage", "s", "", "Storage URI (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "Log level (trace, debug, info, warning, error)")
}

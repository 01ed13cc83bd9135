package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	track "github.com/bouthilx/track"
)

var reportCmd = &cobra.Command{
	Use:   "report UID",
	Short: "Print a trial digest as JSON",
	Long: `Print a trial digest as indented JSON, suitable for piping.

UID may be a unique prefix.

Examples:
  track report 3f2a9c -s file://results.json
  track report 3f2a9c --short | jq .metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var reportShort bool

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportShort, "short", false, "Short digest")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	trial, err := findTrial(st, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(track.Digest(trial, reportShort), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize digest: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pythonista7/context-tracker-backend/internal/adapter/capture"
	"github.com/Pythonista7/context-tracker-backend/internal/adapter/llm"
	"github.com/Pythonista7/context-tracker-backend/internal/service"
)

// NewSummarizeCommand creates the summarize command.
func NewSummarizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <session-id>",
		Short: "Summarize a session's analyzed records",
		Long: `Summarize the SUCCEEDED records of a stored session without running the
server. A cached summary is printed as-is while no new record succeeded.

Example:
  context-tracker summarize sess_1a2b3c4d
  TRACKER_MODE=MOCK context-tracker summarize sess_1a2b3c4d --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			store, err := openStoreConfig(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			analyzer, err := llm.NewAnalyzer(cfg, logger)
			if err != nil {
				return err
			}

			svc := service.New(store, analyzer, capture.Unavailable, nil, nil, cfg, logger)
			defer svc.Close(cmd.Context())

			summary, err := svc.Summarize(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "%s (%d records, %d failed)\n\n%s\n", summary.SessionID, summary.RecordCount, summary.FailedCount, summary.Text)
			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/repository"
)

// NewSessionsCommand creates the sessions command group.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}
	cmd.AddCommand(newSessionsListCommand(rootOpts))
	cmd.AddCommand(newSessionsShowCommand(rootOpts))
	return cmd
}

func newSessionsListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatus(status)
			if err != nil {
				return err
			}
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeSessions(cmd.OutOrStdout(), rootOpts.Format, sessions)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list sessions in this status")
	return cmd
}

func newSessionsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			sess, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("%w: session %s", domain.ErrNotFound, args[0])
			}
			records, err := store.ListRecords(ctx, sess.SessionID, domain.RecordFilter{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, struct {
					Session *domain.Session        `json:"session"`
					Records []domain.ContextRecord `json:"records"`
				}{sess, records})
			}

			fmt.Fprintf(out, "session:  %s\n", sess.SessionID)
			fmt.Fprintf(out, "status:   %s\n", sess.Status)
			fmt.Fprintf(out, "interval: %s\n", sess.CaptureInterval())
			fmt.Fprintf(out, "created:  %s\n", sess.CreatedAt.Format(time.RFC3339))
			if len(records) == 0 {
				fmt.Fprintln(out, "no records")
				return nil
			}
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tSTATUS\tRETRIES\tCAPTURED\tERROR")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", r.Sequence, r.Status, r.RetryCount, r.CapturedAt.Format(time.RFC3339), r.Error)
			}
			return w.Flush()
		},
	}
}

func openStore(rootOpts *RootOptions) (*repository.SQLiteStore, error) {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return nil, err
	}
	return openStoreConfig(cfg)
}

func openStoreConfig(cfg *config.Config) (*repository.SQLiteStore, error) {
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return store, nil
}

func parseStatus(raw string) (domain.SessionStatus, error) {
	if raw == "" {
		return "", nil
	}
	switch s := domain.SessionStatus(strings.ToUpper(raw)); s {
	case domain.SessionStatusCreated, domain.SessionStatusActive, domain.SessionStatusPaused, domain.SessionStatusStopped:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown session status %q", domain.ErrInvalidArgument, raw)
}

func writeSessions(out io.Writer, format string, sessions []domain.Session) error {
	if format == "json" {
		return writeJSON(out, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tINTERVAL\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.SessionID, s.Status, s.CaptureInterval(), s.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

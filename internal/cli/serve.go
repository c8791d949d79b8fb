package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pythonista7/context-tracker-backend/internal/adapter/capture"
	"github.com/Pythonista7/context-tracker-backend/internal/adapter/llm"
	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/policy"
	"github.com/Pythonista7/context-tracker-backend/internal/service"
	transport "github.com/Pythonista7/context-tracker-backend/internal/transport/http"
	"github.com/Pythonista7/context-tracker-backend/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and capture scheduler",
		Long: `Start the context tracker: the HTTP API, the per-session capture
scheduler and the analysis pipeline. Sessions left ACTIVE by a previous run
are resumed.

Example:
  context-tracker serve --port 8080
  LLM_PROVIDER=anthropic CAPTURE_COMMAND="grim -" context-tracker serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides HTTP_PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg, os.Stderr)

	logger.Info("starting context tracker", "port", cfg.HTTPPort, "database", cfg.DatabaseURL, "provider", cfg.Provider)

	db, err := openStoreConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	analyzer, err := llm.NewAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	policyEngine, err := policy.LoadEngine(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(logger)
	go hub.Run(hubCtx)

	source, err := capture.NewSource(cfg, logger)
	if err != nil {
		return err
	}

	svc := service.New(db, analyzer, source, policyEngine, hub, cfg, logger)
	if err := svc.Recover(ctx); err != nil {
		return err
	}

	server := transport.NewServer(svc, ws.NewServer(hub, svc.GetSession, logger))
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("HTTP API started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
	case err := <-errCh:
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	logger.Info("shutting down context tracker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown HTTP server gracefully", "error", err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn("pipeline did not drain before shutdown", "error", err)
	}
	logger.Info("context tracker stopped")
	return runErr
}

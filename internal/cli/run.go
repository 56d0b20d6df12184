package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/app"
)

const shutdownTimeout = 30 * time.Second

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var skipBootstrap bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start one pipeline per configured entity",
		Long: `Start the sync pipelines and keep them running until SIGINT or SIGTERM.

The destination index is created from the embedded schema first unless it
already exists. Every pipeline resumes from its stored checkpoint.

Example:
  searchsync run --config ./config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPipelines(ctx, rootOpts, skipBootstrap)
		},
	}

	cmd.Flags().BoolVar(&skipBootstrap, "skip-index-bootstrap", false, "do not create the index when it is missing")
	return cmd
}

func runPipelines(ctx context.Context, opts *RootOptions, skipBootstrap bool) error {
	logger := slog.Default()
	mgr := app.NewManager(opts.Config, logger)

	if !skipBootstrap {
		if err := mgr.EnsureIndex(ctx); err != nil {
			return err
		}
	}

	if err := mgr.Init(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to close connections", "error", err)
		}
	}()

	logger.Info("searchsync started", "entities", opts.Config.Pipeline.Entities)
	err := mgr.Run(ctx)
	logger.Info("searchsync stopped")
	return err
}

// Package cli implements the searchsync command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/logging"
)

// defaultCommandTimeout bounds one-shot commands; their stores retry forever otherwise.
const defaultCommandTimeout = time.Minute

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "searchsync",
		Short: "Replicate film work changes from Postgres into Elasticsearch",
		Long: `searchsync polls the film_work, genre and person tables for changes,
hydrates every affected film work and upserts it into the search index.
Each table is followed by its own pipeline with its own checkpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.LoadConfig(opts.ConfigDir)
			if err != nil {
				return err
			}
			if err := logging.Initialize(cfg.Logging); err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Shutdown()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigDir, "config", "c", config.DefaultConfigDir,
		"directory holding config.yml and config.local.yml")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewCheckpointCommand(opts))

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "searchsync %s (%s, %s)\n", version, commit, buildDate)
		},
	}
}

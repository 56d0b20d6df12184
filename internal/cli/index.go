package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/app"
	"github.com/syntrixbase/searchsync/internal/index"
)

// NewIndexCommand creates the index command group.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the destination index",
	}

	var timeout time.Duration
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultCommandTimeout, "give up when Elasticsearch stays unreachable this long")

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the index with the embedded schema if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			mgr := app.NewManager(rootOpts.Config, nil)
			if err := mgr.EnsureIndex(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s ready\n", rootOpts.Config.Elasticsearch.Index)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the embedded index schema",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = cmd.OutOrStdout().Write(index.Schema())
		},
	})

	return cmd
}

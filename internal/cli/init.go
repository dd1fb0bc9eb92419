package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nopg/internal/migrate"
	"github.com/roach88/nopg/internal/session"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the document tables",
		Long: `Check the database is supported, apply pending migrations and install
the builtin CUE library. Safe to run repeatedly.

Examples:
  nopg init
  nopg init --driver pgx --dsn postgres://localhost/nopg`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				s.Init(ctx).LatestAppliedVersion(ctx)
				if err := s.Err(); err != nil {
					return err
				}
				v, _ := session.FetchAs[int](s)
				rootOpts.Logger.Info("store initialized", "driver", rootOpts.Config.Store.Driver, "version", v)
				return rootOpts.output(cmd).Summary(
					fmt.Sprintf("initialized at schema version %d", v),
					map[string]any{"version": v},
				)
			})
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Show the stored schema version",
		Long:          "Show the schema version recorded in the store (-1 before init) and the latest known one.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				v, ok := session.FetchAs[int](s.LatestAppliedVersion(ctx))
				if !ok {
					return s.Err()
				}
				text := fmt.Sprintf("schema version %d (latest %d)", v, migrate.Latest)
				if v < migrate.Latest {
					text += ", run nopg init to upgrade"
				}
				return rootOpts.output(cmd).Summary(text, map[string]any{
					"version": v,
					"latest":  migrate.Latest,
				})
			})
		},
	}
}

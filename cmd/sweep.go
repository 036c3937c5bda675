package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"auditcache/internal/bootstrap"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one eviction sweep and exit",
	RunE: withApp(func(cmd *cobra.Command, rt *bootstrap.Runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		removed, err := rt.Sweeper.SweepOnce(ctx)
		if err != nil {
			logging.Error(ctx, "sweep failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "sweep")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired records (retention %s)\n", removed, rt.App.Config.Capture.Retention()); err != nil {
			return errs.Wrap(err, "write sweep output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

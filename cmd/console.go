package cmd

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"auditcache/internal/bootstrap"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/usecase/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the operator console (restore, flush, sweep)",
	RunE: withApp(func(cmd *cobra.Command, rt *bootstrap.Runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		if rt.Subscriber != nil {
			if err := rt.Subscriber.Start(ctx); err != nil {
				return errs.Wrap(err, "start nats subscriber")
			}
		}

		model := console.NewModel(ctx, runtimeOperations{rt: rt}, console.Options{
			RefreshInterval: refreshInterval,
		})
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		_, runErr := program.Run()
		stopSubscriber(ctx, rt)
		if runErr != nil {
			return errs.Wrap(runErr, "run console")
		}

		// Entries captured while the console was open are published on exit.
		if _, err := rt.Flusher.FlushOnce(ctx); err != nil {
			return errs.Wrap(err, "final flush")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Duration("refresh-interval", 2*time.Second, "Pending count refresh interval")
}

type runtimeOperations struct {
	rt *bootstrap.Runtime
}

func (o runtimeOperations) Restore(ctx context.Context, reference string) (audit.AuditRecord, error) {
	return o.rt.Service.Restore(ctx, reference)
}

func (o runtimeOperations) Pending() int {
	return o.rt.Aggregator.Len()
}

func (o runtimeOperations) Flush(ctx context.Context) (int, error) {
	return o.rt.Flusher.FlushOnce(ctx)
}

func (o runtimeOperations) Sweep(ctx context.Context) (int64, error) {
	return o.rt.Sweeper.SweepOnce(ctx)
}

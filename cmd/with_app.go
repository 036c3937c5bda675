package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"auditcache/internal/bootstrap"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

func withApp(run func(cmd *cobra.Command, rt *bootstrap.Runtime) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var rt *bootstrap.Runtime
		fxApp := fx.New(
			bootstrap.Module,
			fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&rt),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 15*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, rt); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

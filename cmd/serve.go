package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"auditcache/internal/bootstrap"
	"auditcache/internal/bootstrap/config"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture ingress, flusher and eviction sweeper",
	RunE: withApp(func(cmd *cobra.Command, rt *bootstrap.Runtime) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		cfg := rt.App.Config
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTP.Addr
		}

		if err := rt.App.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		if config.Watch(ctx, rt.App.Viper, func(next config.Config) {
			roles := audit.ParseRoleSet(next.Capture.IgnoredRoleIDs)
			rt.Service.SetIgnoredRoles(roles)
			logging.Info(ctx, "ignored roles reloaded", slog.Int("count", len(roles)))
		}) {
			logging.Info(ctx, "watching config file for ignored role changes", slog.String("path", rt.App.Viper.ConfigFileUsed()))
		}

		if rt.Subscriber != nil {
			if err := rt.Subscriber.Start(ctx); err != nil {
				return errs.Wrap(err, "start nats subscriber")
			}
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           newServeHandler(rt.Service, rt.Hub, rt.Metrics.Handler()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// The flusher outlives ingress so its final drain sees every late event.
		flushCtx, stopFlusher := context.WithCancel(context.WithoutCancel(ctx))
		defer stopFlusher()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return rt.Flusher.Run(flushCtx)
		})
		g.Go(func() error {
			return rt.Sweeper.Run(gctx)
		})
		g.Go(func() error {
			logging.Info(ctx, "http server started", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "serve http")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			defer stopFlusher()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			err := server.Shutdown(shutdownCtx)
			stopSubscriber(ctx, rt)
			return err
		})

		logging.Info(ctx, "auditcache serving",
			slog.Duration("retention", cfg.Capture.Retention()),
			slog.Duration("flush_interval", cfg.Capture.FlushInterval()),
			slog.Duration("sweep_interval", cfg.Capture.SweepInterval()),
			slog.Bool("automod", cfg.AutoMod.Enabled),
			slog.Bool("relay", cfg.Relay.URL != ""),
		)

		err := g.Wait()
		logging.Info(ctx, "auditcache stopped")
		return err
	}),
}

func stopSubscriber(ctx context.Context, rt *bootstrap.Runtime) {
	if rt.Subscriber == nil {
		return
	}
	if err := rt.Subscriber.Stop(); err != nil {
		logging.Warn(ctx, "stop nats subscriber failed", slog.Any("err", errs.Loggable(err)))
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides http.addr / HTTP_ADDR)")
}

package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"auditcache/internal/bootstrap/config"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/infrastructure/feed"
	"auditcache/internal/infrastructure/gateway"
	"auditcache/internal/infrastructure/metrics"
	"auditcache/internal/infrastructure/relay"
	"auditcache/internal/ports"
	"auditcache/internal/usecase/capture"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			metrics.NewCollector,
			fx.As(fx.Self()),
			fx.As(new(ports.Metrics)),
		),
	),
	fx.Provide(capture.NewAggregator),
	fx.Provide(provideHub),
	fx.Provide(provideNoticeSink),
	fx.Provide(provideRelay),
	fx.Provide(provideCaptureService),
	fx.Provide(provideFlusher),
	fx.Provide(provideSweeper),
	fx.Provide(provideSubscriber),
	fx.Provide(provideRuntime),
)

// Runtime is everything a command may need, resolved once per command.
type Runtime struct {
	App        *App
	Service    *capture.Service
	Aggregator *capture.Aggregator
	Flusher    *capture.Flusher
	Sweeper    *capture.Sweeper
	Hub        *feed.Hub
	Metrics    *metrics.Collector
	// Subscriber is nil unless nats.url is set.
	Subscriber *gateway.Subscriber
}

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

type configResult struct {
	fx.Out

	Config config.Config
	Viper  *viper.Viper
}

func provideConfig(p configParams) (configResult, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	cfg, v, err := config.LoadViper(ctx, p.ConfigFile)
	if err != nil {
		return configResult{}, err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return configResult{}, errs.Wrap(err, "configure logging")
	}
	logging.SetDefault(logger.With(slog.String("app", cfg.App.Name)))

	return configResult{Config: cfg, Viper: v}, nil
}

func provideApp(lc fx.Lifecycle, ctx context.Context, cfg config.Config, v *viper.Viper) (*App, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	app, err := OpenApp(logCtx, cfg, v)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			return app.Close(stopCtx)
		},
	})
	return app, nil
}

func provideHub(lc fx.Lifecycle) *feed.Hub {
	hub := feed.NewHub()
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

func provideNoticeSink(hub *feed.Hub) ports.NoticeSink {
	return feed.Fanout{feed.LogSink{}, hub}
}

// provideRelay returns a nil Relay when no URL is configured.
func provideRelay(cfg config.Config) (ports.Relay, error) {
	if cfg.Relay.URL == "" {
		return nil, nil
	}
	r, err := relay.NewWebhookRelay(relay.Config{URL: cfg.Relay.URL, Timeout: cfg.Relay.Timeout()})
	if err != nil {
		return nil, errs.Wrap(err, "build relay")
	}
	return r, nil
}

type captureParams struct {
	fx.In

	App        *App
	Aggregator *capture.Aggregator
	Sink       ports.NoticeSink
	Relay      ports.Relay
	Metrics    ports.Metrics
}

func provideCaptureService(p captureParams) *capture.Service {
	cfg := p.App.Config
	return capture.NewService(capture.Dependencies{
		Store:      p.App.Store,
		UnitOfWork: p.App.UnitOfWork,
		Cache:      p.App.Cache,
		Aggregator: p.Aggregator,
		Sink:       p.Sink,
		Relay:      p.Relay,
		Metrics:    p.Metrics,
	}, capture.Config{
		Retention:        cfg.Capture.Retention(),
		Immediate:        cfg.Capture.FlushInterval() == 0,
		IgnoredRoleIDs:   audit.ParseRoleSet(cfg.Capture.IgnoredRoleIDs),
		AutoModEnabled:   cfg.AutoMod.Enabled,
		AutoModChannelID: cfg.AutoMod.ChannelID,
		RelayUsername:    cfg.Relay.Username,
		RelayAvatarURL:   cfg.Relay.AvatarURL,
	})
}

func provideFlusher(app *App, agg *capture.Aggregator, sink ports.NoticeSink, m ports.Metrics) *capture.Flusher {
	return capture.NewFlusher(agg, sink, app.Config.Capture.FlushInterval(), m)
}

func provideSweeper(app *App, m ports.Metrics) *capture.Sweeper {
	c := app.Config.Capture
	return capture.NewSweeper(app.Store, app.Cache, c.Retention(), c.SweepInterval(), m)
}

func provideSubscriber(cfg config.Config, svc *capture.Service) *gateway.Subscriber {
	if cfg.NATS.URL == "" {
		return nil
	}
	return gateway.NewSubscriber(svc, gateway.Config{
		URL:             cfg.NATS.URL,
		DeletionSubject: cfg.NATS.DeletionSubject,
		AutoModSubject:  cfg.NATS.AutoModSubject,
		AutoModEnabled:  cfg.AutoMod.Enabled,
	})
}

type runtimeParams struct {
	fx.In

	App        *App
	Service    *capture.Service
	Aggregator *capture.Aggregator
	Flusher    *capture.Flusher
	Sweeper    *capture.Sweeper
	Hub        *feed.Hub
	Metrics    *metrics.Collector
	Subscriber *gateway.Subscriber
}

func provideRuntime(p runtimeParams) *Runtime {
	return &Runtime{
		App:        p.App,
		Service:    p.Service,
		Aggregator: p.Aggregator,
		Flusher:    p.Flusher,
		Sweeper:    p.Sweeper,
		Hub:        p.Hub,
		Metrics:    p.Metrics,
		Subscriber: p.Subscriber,
	}
}

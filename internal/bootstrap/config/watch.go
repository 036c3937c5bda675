package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

// Watch re-decodes the config file whenever it is written and hands the
// new value to onChange. Invalid edits are logged and skipped. It returns
// false when no config file is in use.
func Watch(ctx context.Context, v *viper.Viper, onChange func(Config)) bool {
	if v == nil || v.ConfigFileUsed() == "" || onChange == nil {
		return false
	}
	// A --config path that did not exist at load time is still reported by
	// ConfigFileUsed.
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		return false
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config.watch"))

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logging.Warn(logCtx, "ignoring invalid config change", slog.String("path", e.Name), slog.Any("err", errs.Loggable(err)))
			return
		}
		logging.Info(logCtx, "config reloaded", slog.String("path", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
	return true
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app" toml:"app"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" toml:"log"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" toml:"database"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture" toml:"capture"`
	AutoMod  AutoModConfig  `mapstructure:"automod" yaml:"automod" toml:"automod"`
	Relay    RelayConfig    `mapstructure:"relay" yaml:"relay" toml:"relay"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http" toml:"http"`
	NATS     NATSConfig     `mapstructure:"nats" yaml:"nats" toml:"nats"`
}

type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name" toml:"name"`
	Env  string `mapstructure:"env" yaml:"env" toml:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" toml:"format" validate:"omitempty,oneof=text json"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" toml:"driver" validate:"oneof=sqlite sqlite3 mongo mongodb"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" toml:"dsn" validate:"required"`
	// Name is the Mongo database; unused for SQLite.
	Name string `mapstructure:"name" yaml:"name" toml:"name"`
}

type CaptureConfig struct {
	RetentionHours       int    `mapstructure:"retention_hours" yaml:"retention_hours" toml:"retention_hours" validate:"gt=0"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds" toml:"sweep_interval_seconds" validate:"gt=0"`
	FlushIntervalSeconds int    `mapstructure:"flush_interval_seconds" yaml:"flush_interval_seconds" toml:"flush_interval_seconds" validate:"gte=0"`
	IgnoredRoleIDs       string `mapstructure:"ignored_role_ids" yaml:"ignored_role_ids" toml:"ignored_role_ids"`
}

type AutoModConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	ChannelID string `mapstructure:"channel_id" yaml:"channel_id" toml:"channel_id" validate:"required_if=Enabled true"`
}

type RelayConfig struct {
	URL            string `mapstructure:"url" yaml:"url" toml:"url" validate:"omitempty,url"`
	Username       string `mapstructure:"username" yaml:"username" toml:"username"`
	AvatarURL      string `mapstructure:"avatar_url" yaml:"avatar_url" toml:"avatar_url" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" toml:"addr" validate:"required"`
}

type NATSConfig struct {
	URL             string `mapstructure:"url" yaml:"url" toml:"url"`
	DeletionSubject string `mapstructure:"deletion_subject" yaml:"deletion_subject" toml:"deletion_subject"`
	AutoModSubject  string `mapstructure:"automod_subject" yaml:"automod_subject" toml:"automod_subject"`
}

func (c CaptureConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c CaptureConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c CaptureConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

func (c RelayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IsMongo reports whether the Mongo backend is selected.
func (c DatabaseConfig) IsMongo() bool {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "mongo", "mongodb":
		return true
	default:
		return false
	}
}

// envBindings maps config keys to the environment variables that set them.
// Later names are fallbacks.
var envBindings = map[string][]string{
	"log.level":                      {"LOG_LEVEL"},
	"log.format":                     {"LOG_FORMAT"},
	"database.driver":                {"DATABASE_DRIVER"},
	"database.dsn":                   {"DATABASE_DSN", "MONGO_URI"},
	"database.name":                  {"DATABASE_NAME"},
	"capture.retention_hours":        {"RETENTION_HOURS"},
	"capture.sweep_interval_seconds": {"SWEEP_INTERVAL_SECONDS"},
	"capture.flush_interval_seconds": {"FLUSH_INTERVAL_SECONDS"},
	"capture.ignored_role_ids":       {"IGNORED_ROLE_IDS"},
	"automod.enabled":                {"AUTOMOD_ENABLED"},
	"automod.channel_id":             {"AUTOMOD_CHANNEL_ID"},
	"relay.url":                      {"RELAY_URL"},
	"relay.username":                 {"RELAY_USERNAME"},
	"relay.avatar_url":               {"RELAY_AVATAR_URL"},
	"relay.timeout_seconds":          {"RELAY_TIMEOUT_SECONDS"},
	"http.addr":                      {"HTTP_ADDR"},
	"nats.url":                       {"NATS_URL"},
	"nats.deletion_subject":          {"NATS_DELETION_SUBJECT"},
	"nats.automod_subject":           {"NATS_AUTOMOD_SUBJECT"},
}

func Load(ctx context.Context, configFile string) (Config, error) {
	cfg, _, err := LoadViper(ctx, configFile)
	return cfg, err
}

// LoadViper is Load that also returns the viper instance, for callers that
// watch the config file.
func LoadViper(ctx context.Context, configFile string) (Config, *viper.Viper, error) {
	if ctx == nil {
		return Config{}, nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, nil, errs.Wrapf(err, "bind env for %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configFile != "" && isMissingFile(err)) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, nil, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Int("retention_hours", cfg.Capture.RetentionHours),
		slog.Bool("automod_enabled", cfg.AutoMod.Enabled),
		slog.Bool("relay_enabled", cfg.Relay.URL != ""),
	)

	return cfg, v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	cfg.Database.DSN = strings.TrimSpace(cfg.Database.DSN)
	cfg.AutoMod.ChannelID = strings.TrimSpace(cfg.AutoMod.ChannelID)
	cfg.Relay.URL = strings.TrimSpace(cfg.Relay.URL)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return errs.Wrap(err, "validate config")
	}
	return nil
}

// Redacted returns a copy safe to print: credentials in the DSN are masked.
func (c Config) Redacted() Config {
	out := c
	if u, err := url.Parse(c.Database.DSN); err == nil && u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			out.Database.DSN = u.String()
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auditcache")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.name", "discord_bot")
	v.SetDefault("capture.retention_hours", 24)
	v.SetDefault("capture.sweep_interval_seconds", 3600)
	v.SetDefault("capture.flush_interval_seconds", 60)
	v.SetDefault("capture.ignored_role_ids", "")
	v.SetDefault("automod.enabled", false)
	v.SetDefault("relay.username", "AutoMod Relay")
	v.SetDefault("relay.timeout_seconds", 10)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("nats.deletion_subject", "auditcache.events.deletion")
	v.SetDefault("nats.automod_subject", "auditcache.events.automod")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

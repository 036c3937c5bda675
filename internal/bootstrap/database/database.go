package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"

	"auditcache/internal/bootstrap/config"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// Open opens the SQLite database. Unique violations are translated to
// gorm.ErrDuplicatedKey.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		db, err := gorm.Open(gormsqlite.Open(withBusyTimeout(cfg.DSN)), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errs.Wrap(err, "get sql db")
		}
		// One writer at a time keeps capture transactions from hitting SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, errs.Wrap(err, "ping sqlite db")
		}

		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", cfg.DSN))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenMongo connects and pings the Mongo deployment so a bad URI fails at
// start-up rather than on the first event.
func OpenMongo(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, *mongo.Database, error) {
	if ctx == nil {
		return nil, nil, errors.New("context is required")
	}
	if !cfg.IsMongo() {
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.DSN).
		SetAppName("auditcache").
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, nil, errs.Wrap(err, "connect mongo")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, errs.Wrap(err, "ping mongo")
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "discord_bot"
	}
	logging.Info(logCtx, "database opened", slog.String("driver", "mongo"), slog.String("database", name))
	return client, client.Database(name), nil
}

func withBusyTimeout(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == ":memory:" || strings.Contains(trimmed, "busy_timeout") {
		return trimmed
	}
	if strings.Contains(trimmed, "?") {
		return trimmed + "&" + sqliteBusyTimeout
	}
	return trimmed + "?" + sqliteBusyTimeout
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = strings.TrimPrefix(candidate, "file:")
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.database")), "sqlite directory ensured", slog.String("dir", dir))
	return nil
}

package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auditcache/internal/bootstrap/config"
	"auditcache/internal/bootstrap/database"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
	cacheinfra "auditcache/internal/infrastructure/cache"
	"auditcache/internal/infrastructure/persistence/mongostore"
	"auditcache/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "auditcache/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "auditcache/internal/infrastructure/persistence/sqlite/uow"
	"auditcache/internal/ports"
)

// App holds the configuration and the storage selected by database.driver.
// Exactly one of DB and Mongo is set.
type App struct {
	Config config.Config
	Viper  *viper.Viper

	DB    *gorm.DB
	Mongo *mongo.Database

	Store      ports.RecordStore
	Cache      ports.Cache
	UnitOfWork ports.UnitOfWork

	mongoRecords *mongostore.RecordRepository
	mongoCache   *mongostore.Cache
}

// OpenApp connects the configured backend. Any failure here is fatal for
// the process.
func OpenApp(ctx context.Context, cfg config.Config, v *viper.Viper) (*App, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	app := &App{Config: cfg, Viper: v}

	if cfg.Database.IsMongo() {
		_, mdb, err := database.OpenMongo(logCtx, cfg.Database)
		if err != nil {
			return nil, errs.Wrap(err, "open database")
		}
		app.Mongo = mdb
		app.mongoRecords = mongostore.NewRecordRepository(mdb)
		app.mongoCache = mongostore.NewCache(mdb)
		app.Store = app.mongoRecords
		app.Cache = app.mongoCache
		app.UnitOfWork = ports.DirectUnitOfWork{}
	} else {
		db, err := database.Open(logCtx, cfg.Database)
		if err != nil {
			return nil, errs.Wrap(err, "open database")
		}
		app.DB = db
		app.Store = sqliterepo.NewRecordRepository(db)
		app.Cache = cacheinfra.NewSQLiteCache(db)
		app.UnitOfWork = sqliteuow.NewUnitOfWork(db)
	}

	logging.Info(logCtx, "application bootstrap completed", slog.String("database_driver", cfg.Database.Driver))
	return app, nil
}

// InitSchema creates tables (SQLite) or indexes (Mongo). It is idempotent.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	switch {
	case a.DB != nil:
		if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
			return errs.Wrap(err, "auto migrate schema")
		}
		if err := a.stampSchemaVersion(ctx); err != nil {
			return err
		}
	case a.Mongo != nil:
		if err := a.mongoRecords.EnsureIndexes(ctx); err != nil {
			return errs.Wrap(err, "ensure record indexes")
		}
		if err := a.mongoCache.EnsureIndexes(ctx); err != nil {
			return errs.Wrap(err, "ensure cache indexes")
		}
	default:
		return errors.New("no database is open")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

// SchemaVersion reads the version stamped by InitSchema. It is empty for
// Mongo and for SQLite files that were never initialised.
func (a *App) SchemaVersion(ctx context.Context) (string, error) {
	if a.DB == nil {
		return "", nil
	}
	var row model.Meta
	err := a.DB.WithContext(ctx).Where("key = ?", model.MetaKeySchemaVersion).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(err, "read schema version")
	}
	return row.Value, nil
}

func (a *App) stampSchemaVersion(ctx context.Context) error {
	row := model.Meta{Key: model.MetaKeySchemaVersion, Value: model.SchemaVersion}
	if err := a.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "stamp schema version")
	}
	return nil
}

func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	switch {
	case a.DB != nil:
		sqlDB, err := a.DB.DB()
		if err != nil {
			return errs.Wrap(err, "get sql db")
		}
		if err := sqlDB.Close(); err != nil {
			return errs.Wrap(err, "close sql db")
		}
	case a.Mongo != nil:
		if err := a.Mongo.Client().Disconnect(ctx); err != nil {
			return errs.Wrap(err, "disconnect mongo")
		}
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "database connection closed")
	return nil
}

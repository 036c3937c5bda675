/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"auditcache/internal/bootstrap"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create tables (SQLite) or indexes (Mongo) for the audit store",
	RunE: withApp(func(cmd *cobra.Command, rt *bootstrap.Runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := rt.App.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		version, err := rt.App.SchemaVersion(ctx)
		if err != nil {
			return errs.Wrap(err, "read schema version")
		}

		driver := rt.App.Config.Database.Driver
		logging.Info(ctx, "init-db finished", slog.String("database_driver", driver), slog.String("schema_version", version))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized (%s%s)\n", driver, versionSuffix(version)); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}

func versionSuffix(version string) string {
	if version == "" {
		return ""
	}
	return ", schema v" + version
}

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"auditcache/internal/bootstrap/config"
)

func TestOpenCreatesSQLiteDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "state", "audit.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := os.Stat(filepath.Dir(dsn)); err != nil {
		t.Fatalf("sqlite directory missing: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", DSN: "x"}); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
	if _, _, err := OpenMongo(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: "x"}); err == nil {
		t.Fatalf("OpenMongo() expected error for sqlite driver")
	}
}

func TestWithBusyTimeout(t *testing.T) {
	cases := map[string]string{
		"audit.sqlite":                     "audit.sqlite?_pragma=busy_timeout(5000)",
		"file:audit.sqlite?cache=shared":   "file:audit.sqlite?cache=shared&_pragma=busy_timeout(5000)",
		":memory:":                         ":memory:",
		"a.sqlite?_pragma=busy_timeout(1)": "a.sqlite?_pragma=busy_timeout(1)",
	}
	for in, want := range cases {
		if got := withBusyTimeout(in); got != want {
			t.Fatalf("withBusyTimeout(%q) = %q, want %q", in, got, want)
		}
	}
}

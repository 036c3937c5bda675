package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func writeWatchedConfig(t *testing.T, path string, retentionHours int, roles string) {
	t.Helper()
	content := "database:\n  dsn: watched.sqlite\ncapture:\n" +
		"  retention_hours: " + strconv.Itoa(retentionHours) + "\n" +
		"  ignored_role_ids: \"" + roles + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// waitForRoles returns the first reloaded config whose ignored roles differ
// from the initial value.
func waitForRoles(t *testing.T, changes <-chan Config, initial string) Config {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Capture.IgnoredRoleIDs != initial {
				return cfg
			}
		case <-deadline:
			t.Fatalf("no config reload observed")
			return Config{}
		}
	}
}

func TestWatchReloadsIgnoredRoles(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeWatchedConfig(t, path, 24, "111")

	cfg, v, err := LoadViper(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadViper() error = %v", err)
	}
	if cfg.Capture.IgnoredRoleIDs != "111" {
		t.Fatalf("initial ignored_role_ids = %q", cfg.Capture.IgnoredRoleIDs)
	}

	changes := make(chan Config, 16)
	if !Watch(context.Background(), v, func(next Config) { changes <- next }) {
		t.Fatalf("Watch() = false with a config file in use")
	}

	writeWatchedConfig(t, path, 24, "111,222")

	got := waitForRoles(t, changes, "111")
	if got.Capture.IgnoredRoleIDs != "111,222" {
		t.Fatalf("reloaded ignored_role_ids = %q, want 111,222", got.Capture.IgnoredRoleIDs)
	}
}

func TestWatchSkipsInvalidEdit(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeWatchedConfig(t, path, 24, "111")

	_, v, err := LoadViper(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadViper() error = %v", err)
	}

	changes := make(chan Config, 16)
	if !Watch(context.Background(), v, func(next Config) { changes <- next }) {
		t.Fatalf("Watch() = false with a config file in use")
	}

	// retention_hours must be positive; this edit is rejected as a whole.
	writeWatchedConfig(t, path, 0, "999")
	time.Sleep(200 * time.Millisecond)
	writeWatchedConfig(t, path, 24, "777")

	got := waitForRoles(t, changes, "111")
	if got.Capture.IgnoredRoleIDs != "777" {
		t.Fatalf("reloaded ignored_role_ids = %q, want 777 (invalid edit must be skipped)", got.Capture.IgnoredRoleIDs)
	}
	if got.Capture.RetentionHours != 24 {
		t.Fatalf("reloaded retention_hours = %d, want 24", got.Capture.RetentionHours)
	}
}

func TestWatchWithoutConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DSN", "env.sqlite")

	_, v, err := LoadViper(context.Background(), missingFile(t))
	if err != nil {
		t.Fatalf("LoadViper() error = %v", err)
	}
	if Watch(context.Background(), v, func(Config) {}) {
		t.Fatalf("Watch() = true without a config file")
	}
	if Watch(context.Background(), nil, func(Config) {}) {
		t.Fatalf("Watch(nil viper) = true")
	}
}

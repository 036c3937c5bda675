package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"auditcache/internal/infrastructure/persistence/sqlite/model"
)

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "cache.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&model.CacheEntry{}); err != nil {
		t.Fatalf("auto migrate cache_entries: %v", err)
	}

	return NewSQLiteCache(db)
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "capture:evt-1", "0192f0c8-7b1a-7cc4-9a55-3c1f3b7e2d10", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "capture:evt-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "0192f0c8-7b1a-7cc4-9a55-3c1f3b7e2d10" {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "capture:evt-1", "updated", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, found, err = cache.Get(ctx, "capture:evt-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "updated" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "capture:evt-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err = cache.Get(ctx, "capture:evt-1")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestSQLiteCacheExpiry(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	if err := cache.Set(ctx, "short", "v", time.Minute); err != nil {
		t.Fatalf("Set(short) error = %v", err)
	}
	if err := cache.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("Set(forever) error = %v", err)
	}

	if _, found, _ := cache.Get(ctx, "short"); !found {
		t.Fatalf("Get(short) before expiry found=false")
	}

	cache.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, found, _ := cache.Get(ctx, "short"); found {
		t.Fatalf("Get(short) after expiry found=true")
	}

	purged, err := cache.PurgeExpired(ctx, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if purged != 1 {
		t.Fatalf("PurgeExpired() = %d, want 1", purged)
	}
	if _, found, _ := cache.Get(ctx, "forever"); !found {
		t.Fatalf("Get(forever) found=false after purge")
	}
}

func TestSQLiteCacheRejectsEmptyKey(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, ""); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}

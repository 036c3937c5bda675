package capture

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"auditcache/internal/domain/audit"
	"auditcache/internal/infrastructure/cache"
	"auditcache/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "auditcache/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "auditcache/internal/infrastructure/persistence/sqlite/uow"
	"auditcache/internal/ports"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]audit.BufferEntry
	records []audit.AuditRecord
	err     error
}

func (s *recordingSink) PublishBatch(_ context.Context, entries []audit.BufferEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]audit.BufferEntry(nil), entries...))
	return nil
}

func (s *recordingSink) PublishRecord(_ context.Context, record audit.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) Batches() [][]audit.BufferEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]audit.BufferEntry(nil), s.batches...)
}

func (s *recordingSink) Records() []audit.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.AuditRecord(nil), s.records...)
}

type fakeRelay struct {
	mu       sync.Mutex
	messages []ports.RelayMessage
	err      error
}

func (r *fakeRelay) Relay(_ context.Context, msg ports.RelayMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.err
}

func (r *fakeRelay) Messages() []ports.RelayMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.RelayMessage(nil), r.messages...)
}

type testEnv struct {
	db         *gorm.DB
	svc        *Service
	store      *sqliterepo.RecordRepository
	cache      *cache.SQLiteCache
	aggregator *Aggregator
	sink       *recordingSink
	relay      *fakeRelay
	now        time.Time
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "capture.sqlite")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func setupService(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	db := openTestDB(t)
	env := &testEnv{
		db:         db,
		store:      sqliterepo.NewRecordRepository(db),
		cache:      cache.NewSQLiteCache(db),
		aggregator: NewAggregator(),
		sink:       &recordingSink{},
		relay:      &fakeRelay{},
		now:        time.Date(2026, 10, 17, 9, 30, 0, 123000000, time.UTC),
	}
	env.svc = NewService(Dependencies{
		Store:      env.store,
		UnitOfWork: sqliteuow.NewUnitOfWork(db),
		Cache:      env.cache,
		Aggregator: env.aggregator,
		Sink:       env.sink,
		Relay:      env.relay,
	}, cfg)
	env.svc.now = func() time.Time { return env.now }
	return env
}

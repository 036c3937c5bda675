package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

type SweeperState int32

const (
	SweeperIdle SweeperState = iota
	SweeperSweeping
)

func (s SweeperState) String() string {
	switch s {
	case SweeperSweeping:
		return "sweeping"
	default:
		return "idle"
	}
}

// Sweeper evicts records older than the retention window. It also purges
// expired capture keys from the cache when one is configured.
type Sweeper struct {
	store     ports.RecordStore
	cache     ports.Cache
	retention time.Duration
	interval  time.Duration
	metrics   ports.Metrics
	now       func() time.Time

	state atomic.Int32
}

func NewSweeper(store ports.RecordStore, cache ports.Cache, retention time.Duration, interval time.Duration, metrics ports.Metrics) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Sweeper{
		store:     store,
		cache:     cache,
		retention: retention,
		interval:  interval,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (s *Sweeper) State() SweeperState {
	return SweeperState(s.state.Load())
}

// SweepOnce removes every record whose timestamp is before now-retention
// and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, errors.New("record store is required")
	}
	if !s.state.CompareAndSwap(int32(SweeperIdle), int32(SweeperSweeping)) {
		return 0, errors.New("sweep already in progress")
	}
	defer s.state.Store(int32(SweeperIdle))

	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	now := s.now().UTC()
	threshold := now.Add(-s.retention)

	removed, err := s.store.DeleteOlderThan(ctx, threshold)
	if err != nil {
		return 0, errs.Wrap(err, "delete expired records")
	}

	if s.cache != nil {
		purged, err := s.cache.PurgeExpired(ctx, now)
		if err != nil {
			logging.Warn(ctx, "purge expired capture keys failed", slog.Any("err", errs.Loggable(err)))
		} else if purged > 0 {
			logging.Info(ctx, "purged expired capture keys", slog.Int64("keys", purged))
		}
	}

	s.metrics.Swept(removed, time.Since(started))
	logging.Info(ctx, "sweep finished",
		slog.Int64("removed", removed),
		slog.Time("threshold", threshold),
	)
	return removed, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Cancellation is only observed between sweeps.
func (s *Sweeper) Run(ctx context.Context) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.capture.sweeper"))

	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil {
		logging.Error(ctx, "sweep failed", slog.Any("err", errs.Loggable(err)))
	}
}

package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

const DefaultFlushInterval = 60 * time.Second

// Flusher drains the Aggregator into the notice sink on a fixed interval.
type Flusher struct {
	aggregator *Aggregator
	sink       ports.NoticeSink
	interval   time.Duration
	metrics    ports.Metrics
}

// NewFlusher builds a flusher. A zero interval means entries are published
// as they are captured, so Run only performs the final drain on shutdown.
func NewFlusher(aggregator *Aggregator, sink ports.NoticeSink, interval time.Duration, metrics ports.Metrics) *Flusher {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Flusher{
		aggregator: aggregator,
		sink:       sink,
		interval:   interval,
		metrics:    metrics,
	}
}

// FlushOnce publishes whatever is pending. An empty buffer makes no sink
// call. A started flush runs to completion even if ctx is cancelled.
func (f *Flusher) FlushOnce(ctx context.Context) (int, error) {
	if f.aggregator == nil {
		return 0, errors.New("aggregator is required")
	}
	if f.sink == nil {
		return 0, errors.New("notice sink is required")
	}

	batch := f.aggregator.Flush()
	f.metrics.Pending(0)
	if len(batch) == 0 {
		return 0, nil
	}

	if err := f.sink.PublishBatch(context.WithoutCancel(ctx), batch); err != nil {
		return 0, errs.Wrapf(err, "publish batch of %d entries", len(batch))
	}
	f.metrics.Flushed(len(batch))
	return len(batch), nil
}

// Run flushes on every tick until ctx is done, then drains once more.
func (f *Flusher) Run(ctx context.Context) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.capture.flusher"))

	if f.interval > 0 {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				f.flushAndLog(ctx)
			}
		}
	} else {
		<-ctx.Done()
	}

	f.flushAndLog(ctx)
	logging.Info(ctx, "flusher stopped")
	return nil
}

func (f *Flusher) flushAndLog(ctx context.Context) {
	n, err := f.FlushOnce(ctx)
	if err != nil {
		logging.Error(ctx, "flush failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	if n > 0 {
		logging.Info(ctx, "flushed capture notices", slog.Int("entries", n))
	}
}

package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcache/internal/domain/audit"
)

func TestFlushOnceWithEmptyBufferMakesNoSinkCall(t *testing.T) {
	sink := &recordingSink{}
	flusher := NewFlusher(NewAggregator(), sink, time.Minute, nil)

	n, err := flusher.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.Batches())
}

func TestFlushOnceDeliversThreeCapturesAsOneBatch(t *testing.T) {
	agg := NewAggregator()
	sink := &recordingSink{}
	flusher := NewFlusher(agg, sink, time.Minute, nil)

	for _, id := range []string{"a", "b", "c"} {
		agg.Append(audit.BufferEntry{RecordID: id})
	}

	n, err := flusher.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	batches := sink.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "a", batches[0][0].RecordID)
	assert.Equal(t, "b", batches[0][1].RecordID)
	assert.Equal(t, "c", batches[0][2].RecordID)
	assert.Zero(t, agg.Len())
}

func TestFlushOnceCompletesWithCancelledContext(t *testing.T) {
	agg := NewAggregator()
	sink := &recordingSink{}
	flusher := NewFlusher(agg, sink, time.Minute, nil)
	agg.Append(audit.BufferEntry{RecordID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := flusher.FlushOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFlushOnceReportsSinkError(t *testing.T) {
	agg := NewAggregator()
	sink := &recordingSink{err: errors.New("display down")}
	flusher := NewFlusher(agg, sink, time.Minute, nil)
	agg.Append(audit.BufferEntry{RecordID: "a"})

	_, err := flusher.FlushOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, agg.Len(), "a failed flush does not redeliver")
}

func TestFlusherRunFlushesOnTick(t *testing.T) {
	agg := NewAggregator()
	sink := &recordingSink{}
	flusher := NewFlusher(agg, sink, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- flusher.Run(ctx) }()

	agg.Append(audit.BufferEntry{RecordID: "tick"})
	require.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-stopped)
	assert.Len(t, sink.Batches(), 1, "final drain with empty buffer adds no batch")
}

func TestFlusherRunDrainsOnShutdown(t *testing.T) {
	agg := NewAggregator()
	sink := &recordingSink{}
	flusher := NewFlusher(agg, sink, time.Hour, nil)

	agg.Append(audit.BufferEntry{RecordID: "a"})
	agg.Append(audit.BufferEntry{RecordID: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, flusher.Run(ctx))

	batches := sink.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

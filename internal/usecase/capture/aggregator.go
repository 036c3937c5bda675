package capture

import (
	"sync"

	"auditcache/internal/domain/audit"
)

// Aggregator buffers display entries between flushes. The pending slice is
// only touched under mu; Flush swaps it out in the same critical section it
// is read, so an entry is handed to exactly one flush.
type Aggregator struct {
	mu      sync.Mutex
	pending []audit.BufferEntry
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append adds entry and returns the pending count after the append.
func (a *Aggregator) Append(entry audit.BufferEntry) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = append(a.pending, entry)
	return len(a.pending)
}

// Flush returns the pending entries in append order and leaves the buffer
// empty. It returns nil when nothing is pending.
func (a *Aggregator) Flush() []audit.BufferEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		return nil
	}
	out := a.pending
	a.pending = nil
	return out
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

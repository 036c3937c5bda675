package ports

import (
	"context"

	"auditcache/internal/domain/audit"
)

// NoticeSink is the display side: it receives flushed capture batches and
// individual automod records. Formatting is up to the sink.
type NoticeSink interface {
	PublishBatch(ctx context.Context, entries []audit.BufferEntry) error
	PublishRecord(ctx context.Context, record audit.AuditRecord) error
}

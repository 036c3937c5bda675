package ports

import (
	"context"
	"errors"
	"time"

	"auditcache/internal/domain/audit"
)

var (
	ErrRecordNotFound      = errors.New("audit record not found")
	ErrStorageUnavailable  = errors.New("record storage unavailable")
	ErrDuplicateDecisionID = errors.New("decision id already recorded")
)

// RecordStore is the time-indexed persistent map of audit records. Records
// are reachable by primary id and, for automod records, by decision id.
type RecordStore interface {
	// Insert assigns a fresh id, persists the record and returns the id.
	Insert(ctx context.Context, record audit.AuditRecord) (string, error)
	FindByID(ctx context.Context, id string) (audit.AuditRecord, error)
	FindByDecisionID(ctx context.Context, decisionID string) (audit.AuditRecord, error)
	// DeleteOlderThan removes every record with timestamp < threshold and
	// reports how many were removed. Repeating it is harmless.
	DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}

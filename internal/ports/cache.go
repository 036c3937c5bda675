package ports

import (
	"context"
	"time"
)

// Cache is a small key-value capability with per-key expiry.
// A zero ttl keeps the key until it is deleted.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// PurgeExpired drops keys whose ttl ran out before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

package shared

import (
	"context"
	"time"
)

// IdempotencyStore holds sync-window markers. The sync handler marks an
// entity when it exports it; further sync requests for that entity are
// dropped until the window closes. Keys are entity IDs for sync and event
// IDs for handlers deduplicating redeliveries.
type IdempotencyStore interface {
	// MarkProcessed opens a window of ttl for key. It reports false, and
	// leaves the window unchanged, while an earlier window is still open.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release closes the window early so a failed export can be retried
	Release(ctx context.Context, key string) error

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed keys
	// After this duration, the same key can be processed again
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys that have already been handled.
// It backs both event deduplication and the daily billing-run lease.
type IdempotencyStore interface {
	// MarkProcessed atomically claims the key.
	// Returns true if this call claimed it, false if it was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key is claimed without claiming it.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the key can be claimed again.
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// IdempotencyConfig configures idempotent event handling.
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns a 24h TTL, enabled.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

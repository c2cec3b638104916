package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys of operations that must run at most once at a
// time, such as completing the payment for an order.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports whether this call won it.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is currently held.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops key so the operation may run again.
	Release(ctx context.Context, key string) error

	Close() error
}

// DefaultClaimTTL bounds how long a claim outlives a crashed holder.
const DefaultClaimTTL = 24 * time.Hour

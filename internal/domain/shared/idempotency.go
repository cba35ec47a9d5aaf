package shared

import (
	"context"
	"time"
)

// TransactionStore remembers store transaction identifiers that have
// already been applied, so a replayed purchase event becomes a no-op
// instead of extending the subscription twice.
type TransactionStore interface {
	// MarkProcessed records a transaction ID with a TTL. Returns true if
	// the ID was newly recorded, false if it was seen before.
	MarkProcessed(ctx context.Context, transactionID string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a transaction ID has been seen.
	IsProcessed(ctx context.Context, transactionID string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// DefaultTransactionTTL bounds how long transaction IDs are remembered.
// App Store transaction IDs never legitimately repeat, but unbounded
// retention is not worth it when the subscription upsert is idempotent
// anyway.
const DefaultTransactionTTL = 30 * 24 * time.Hour

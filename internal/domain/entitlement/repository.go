package entitlement

import (
	"context"
	"time"
)

// SubscriptionRepository persists subscriptions. Implementations must
// guarantee at most one active row per organization, including under
// concurrent purchases.
type SubscriptionRepository interface {
	// FindActive returns the organization's active subscription, or
	// shared.ErrNoActiveSubscription when none exists.
	FindActive(ctx context.Context, organizationID string) (*Subscription, error)

	// Upsert records a purchase transactionally: it updates the existing
	// active subscription in place when one exists, and inserts a new row
	// otherwise. It returns the resulting subscription.
	Upsert(ctx context.Context, organizationID string, product Product, transactionID string, now time.Time) (*Subscription, error)
}

// UsageLedger tracks per-period consumption. The consume operation is
// the serialization point for quota enforcement.
type UsageLedger interface {
	// TryConsume atomically increments the organization's counter for the
	// period if and only if consumed < cap, creating the counter row on
	// first use. It returns the post-operation snapshot; Allowed reports
	// whether the increment happened.
	TryConsume(ctx context.Context, organizationID string, period Period, cap int) (UsageSnapshot, error)

	// Snapshot reads current consumption without incrementing.
	Snapshot(ctx context.Context, organizationID string, period Period, cap int) (UsageSnapshot, error)
}

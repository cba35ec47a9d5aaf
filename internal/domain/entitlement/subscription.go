package entitlement

import (
	"time"

	"github.com/skininsight/backend/internal/domain/shared"
)

// SubscriptionStatus is the lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusExpired  SubscriptionStatus = "expired"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the entitlement an organization holds. At most one
// active subscription exists per organization at any time.
type Subscription struct {
	shared.BaseEntity
	OrganizationID        string
	ProductID             string
	Tier                  Tier
	MonthlyCap            int
	Status                SubscriptionStatus
	ProviderTransactionID string
	StartedAt             time.Time
	EndsAt                time.Time
}

// NewSubscription creates an active subscription for a purchased product.
func NewSubscription(organizationID string, product Product, transactionID string, now time.Time) *Subscription {
	return &Subscription{
		BaseEntity:            shared.NewBaseEntity(),
		OrganizationID:        organizationID,
		ProductID:             product.ID,
		Tier:                  product.Tier,
		MonthlyCap:            product.MonthlyCap,
		Status:                StatusActive,
		ProviderTransactionID: transactionID,
		StartedAt:             now,
		EndsAt:                product.PeriodEnd(now),
	}
}

// ApplyPurchase replaces the entitlement terms in place, preserving the
// row identity. Used when a purchase lands for an organization that
// already holds an active subscription (upgrade, downgrade or renewal).
func (s *Subscription) ApplyPurchase(product Product, transactionID string, now time.Time) {
	s.ProductID = product.ID
	s.Tier = product.Tier
	s.MonthlyCap = product.MonthlyCap
	s.Status = StatusActive
	s.ProviderTransactionID = transactionID
	s.StartedAt = now
	s.EndsAt = product.PeriodEnd(now)
	s.UpdatedAt = now
}

// IsActive reports whether the subscription entitles usage at the given time.
func (s *Subscription) IsActive(at time.Time) bool {
	return s.Status == StatusActive && at.Before(s.EndsAt)
}

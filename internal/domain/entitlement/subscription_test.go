package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscription(t *testing.T) {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	product, ok := DefaultCatalog().Lookup("com.skininsightpro.starter.monthly")
	require.True(t, ok)

	sub := NewSubscription("org-1", product, "txn-100", now)

	assert.NotEqual(t, "", sub.ID.String())
	assert.Equal(t, "org-1", sub.OrganizationID)
	assert.Equal(t, TierStarter, sub.Tier)
	assert.Equal(t, 400, sub.MonthlyCap)
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "txn-100", sub.ProviderTransactionID)
	assert.Equal(t, now, sub.StartedAt)
	assert.Equal(t, time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC), sub.EndsAt)
}

func TestSubscriptionApplyPurchase(t *testing.T) {
	catalog := DefaultCatalog()
	starter, _ := catalog.Lookup("com.skininsightpro.starter.monthly")
	professional, _ := catalog.Lookup("com.skininsightpro.professional.monthly")

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sub := NewSubscription("org-1", starter, "txn-1", start)
	originalID := sub.ID

	later := start.AddDate(0, 0, 20)
	sub.ApplyPurchase(professional, "txn-2", later)

	assert.Equal(t, originalID, sub.ID, "upgrade keeps the row identity")
	assert.Equal(t, TierProfessional, sub.Tier)
	assert.Equal(t, 1500, sub.MonthlyCap)
	assert.Equal(t, "txn-2", sub.ProviderTransactionID)
	assert.Equal(t, later, sub.StartedAt)
	assert.Equal(t, later.AddDate(0, 1, 0), sub.EndsAt)
}

func TestSubscriptionIsActive(t *testing.T) {
	product, _ := DefaultCatalog().Lookup("com.skininsightpro.solo.monthly")
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sub := NewSubscription("org-1", product, "txn-1", start)

	assert.True(t, sub.IsActive(start))
	assert.True(t, sub.IsActive(sub.EndsAt.Add(-time.Second)))
	assert.False(t, sub.IsActive(sub.EndsAt), "expiry instant is excluded")

	sub.Status = StatusCanceled
	assert.False(t, sub.IsActive(start))
}

package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("resolves every purchasable product", func(t *testing.T) {
		cases := []struct {
			productID string
			tier      Tier
			cap       int
			interval  BillingInterval
		}{
			{"com.skininsightpro.solo.monthly", TierSolo, 100, IntervalMonthly},
			{"com.skininsightpro.solo.annual", TierSolo, 100, IntervalAnnual},
			{"com.skininsightpro.starter.monthly", TierStarter, 400, IntervalMonthly},
			{"com.skininsightpro.starter.annual", TierStarter, 400, IntervalAnnual},
			{"com.skininsightpro.professional.monthly", TierProfessional, 1500, IntervalMonthly},
			{"com.skininsightpro.business.monthly", TierBusiness, 5000, IntervalMonthly},
			{"com.skininsightpro.enterprise.monthly", TierEnterprise, 15000, IntervalMonthly},
		}
		for _, tc := range cases {
			product, ok := catalog.Lookup(tc.productID)
			require.True(t, ok, tc.productID)
			assert.Equal(t, tc.tier, product.Tier)
			assert.Equal(t, tc.cap, product.MonthlyCap)
			assert.Equal(t, tc.interval, product.Interval)
		}
	})

	t.Run("rejects unknown product", func(t *testing.T) {
		_, ok := catalog.Lookup("com.skininsightpro.platinum.monthly")
		assert.False(t, ok)
	})
}

func TestProductPeriodEnd(t *testing.T) {
	monthly := Product{ID: "m", Interval: IntervalMonthly}
	annual := Product{ID: "a", Interval: IntervalAnnual}

	t.Run("monthly adds one calendar month", func(t *testing.T) {
		from := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC), monthly.PeriodEnd(from))
	})

	t.Run("monthly clamps to last day of shorter month", func(t *testing.T) {
		from := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), monthly.PeriodEnd(from))
	})

	t.Run("monthly clamps into leap February", func(t *testing.T) {
		from := time.Date(2028, 1, 31, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), monthly.PeriodEnd(from))
	})

	t.Run("monthly crosses year boundary", func(t *testing.T) {
		from := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), monthly.PeriodEnd(from))
	})

	t.Run("annual adds one year", func(t *testing.T) {
		from := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC), annual.PeriodEnd(from))
	})

	t.Run("annual clamps leap day", func(t *testing.T) {
		from := time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2029, 2, 28, 0, 0, 0, 0, time.UTC), annual.PeriodEnd(from))
	})
}

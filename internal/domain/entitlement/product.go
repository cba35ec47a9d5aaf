package entitlement

import "time"

// Tier identifies a subscription plan level.
type Tier string

const (
	TierSolo         Tier = "solo"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierBusiness     Tier = "business"
	TierEnterprise   Tier = "enterprise"
)

// BillingInterval is the length of one subscription period.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalAnnual  BillingInterval = "annual"
)

// Product maps a store product identifier to the entitlement it grants.
type Product struct {
	ID         string
	Tier       Tier
	MonthlyCap int
	Interval   BillingInterval
}

// Catalog resolves store product identifiers to products.
type Catalog interface {
	Lookup(productID string) (Product, bool)
}

type staticCatalog map[string]Product

func (c staticCatalog) Lookup(productID string) (Product, bool) {
	p, ok := c[productID]
	return p, ok
}

// DefaultCatalog returns the catalog of purchasable products.
func DefaultCatalog() Catalog {
	products := []Product{
		{ID: "com.skininsightpro.solo.monthly", Tier: TierSolo, MonthlyCap: 100, Interval: IntervalMonthly},
		{ID: "com.skininsightpro.solo.annual", Tier: TierSolo, MonthlyCap: 100, Interval: IntervalAnnual},
		{ID: "com.skininsightpro.starter.monthly", Tier: TierStarter, MonthlyCap: 400, Interval: IntervalMonthly},
		{ID: "com.skininsightpro.starter.annual", Tier: TierStarter, MonthlyCap: 400, Interval: IntervalAnnual},
		{ID: "com.skininsightpro.professional.monthly", Tier: TierProfessional, MonthlyCap: 1500, Interval: IntervalMonthly},
		{ID: "com.skininsightpro.business.monthly", Tier: TierBusiness, MonthlyCap: 5000, Interval: IntervalMonthly},
		{ID: "com.skininsightpro.enterprise.monthly", Tier: TierEnterprise, MonthlyCap: 15000, Interval: IntervalMonthly},
	}
	catalog := make(staticCatalog, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return catalog
}

// PeriodEnd computes when a subscription period starting at from expires.
// Calendar arithmetic clamps to the last valid day of the target month,
// so a period starting Jan 31 ends on the last day of February rather
// than rolling into March.
func (p Product) PeriodEnd(from time.Time) time.Time {
	if p.Interval == IntervalAnnual {
		return addMonthsClamped(from, 12)
	}
	return addMonthsClamped(from, 1)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	// Normalize via the first of the month to avoid AddDate overflow.
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// GormEntitlementMetricsProvider implements EntitlementMetricsProvider
// using GORM. It queries the subscriptions and usage_counters tables
// directly for aggregated metrics.
type GormEntitlementMetricsProvider struct {
	db *gorm.DB
}

// NewGormEntitlementMetricsProvider creates a new GormEntitlementMetricsProvider.
func NewGormEntitlementMetricsProvider(db *gorm.DB) *GormEntitlementMetricsProvider {
	return &GormEntitlementMetricsProvider{db: db}
}

// ActiveSubscriptionsByTier returns the number of currently active
// subscriptions per tier.
func (p *GormEntitlementMetricsProvider) ActiveSubscriptionsByTier(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Tier  string `gorm:"column:tier"`
		Count int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("subscriptions").
		Select("tier, COUNT(*) as count").
		Where("status = ? AND ends_at > ?", "active", time.Now().UTC()).
		Group("tier").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Tier] = r.Count
	}

	return m, nil
}

// SaturatedOrganizationCount returns how many organizations consumed
// their full monthly cap in the period starting at periodStart.
func (p *GormEntitlementMetricsProvider) SaturatedOrganizationCount(ctx context.Context, periodStart time.Time) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("usage_counters").
		Joins("JOIN subscriptions ON subscriptions.organization_id = usage_counters.organization_id AND subscriptions.status = ?", "active").
		Where("usage_counters.period_start = ?", periodStart).
		Where("usage_counters.consumed >= subscriptions.monthly_cap").
		Count(&count).Error

	return count, err
}

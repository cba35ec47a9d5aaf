// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics provides business metrics for the entitlement core.
// It tracks analysis outcomes, applied purchases, and subscription health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	analysisTotal *Counter
	purchaseTotal *Counter

	// Gauge metrics (point-in-time values)
	activeSubscriptions    *Gauge
	saturatedOrganizations *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	entitlementProvider EntitlementMetricsProvider
}

// EntitlementMetricsProvider provides subscription and usage data for
// periodic metrics collection. The interface lets the telemetry layer
// query entitlement state without depending on the domain directly.
type EntitlementMetricsProvider interface {
	// ActiveSubscriptionsByTier returns the number of currently active
	// subscriptions per tier
	ActiveSubscriptionsByTier(ctx context.Context) (map[string]int64, error)

	// SaturatedOrganizationCount returns how many organizations have
	// consumed their full monthly cap in the period starting at periodStart
	SaturatedOrganizationCount(ctx context.Context, periodStart time.Time) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter               metric.Meter
	Logger              *zap.Logger
	CollectInterval     time.Duration // Default: 5 minutes
	EntitlementProvider EntitlementMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:               cfg.Meter,
		logger:              logger,
		stopChan:            make(chan struct{}),
		entitlementProvider: cfg.EntitlementProvider,
	}

	// Initialize counter metrics
	var err error

	bm.analysisTotal, err = NewCounter(
		cfg.Meter,
		"skininsight_analysis_total",
		"Total number of analysis requests by outcome",
		"{analyses}",
	)
	if err != nil {
		return nil, err
	}

	bm.purchaseTotal, err = NewCounter(
		cfg.Meter,
		"skininsight_purchase_total",
		"Total number of store purchases applied",
		"{purchases}",
	)
	if err != nil {
		return nil, err
	}

	// Subscription gauge metrics
	bm.activeSubscriptions, err = NewGauge(
		cfg.Meter,
		"skininsight_active_subscriptions",
		"Number of currently active subscriptions",
		"{subscriptions}",
	)
	if err != nil {
		return nil, err
	}

	bm.saturatedOrganizations, err = NewGauge(
		cfg.Meter,
		"skininsight_quota_saturated_organizations",
		"Number of organizations that exhausted their monthly cap",
		"{organizations}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Analysis Metrics
// =============================================================================

// AnalysisOutcome labels what became of an analysis request.
type AnalysisOutcome string

const (
	AnalysisOutcomeGranted            AnalysisOutcome = "granted"
	AnalysisOutcomeDeniedQuota        AnalysisOutcome = "denied_quota"
	AnalysisOutcomeDeniedSubscription AnalysisOutcome = "denied_subscription"
)

// RecordAnalysis records one quota decision. Called from the application
// layer every time a unit is claimed or denied. Nil-safe so services can
// run without metrics wired.
func (bm *BusinessMetrics) RecordAnalysis(ctx context.Context, organizationID string, outcome AnalysisOutcome) {
	if bm == nil {
		return
	}
	bm.analysisTotal.Inc(ctx,
		AttrOrganizationID.String(organizationID),
		AttrOutcome.String(string(outcome)),
	)
}

// =============================================================================
// Purchase Metrics
// =============================================================================

// RecordPurchase records an applied store purchase. Nil-safe.
func (bm *BusinessMetrics) RecordPurchase(ctx context.Context, productID, tier string) {
	if bm == nil {
		return
	}
	bm.purchaseTotal.Inc(ctx,
		AttrProductID.String(productID),
		AttrTier.String(tier),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects subscription metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectEntitlementMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectEntitlementMetrics(ctx)
		}
	}
}

// collectEntitlementMetrics collects subscription and saturation gauges.
func (bm *BusinessMetrics) collectEntitlementMetrics(ctx context.Context) {
	if bm.entitlementProvider == nil {
		bm.logger.Debug("No entitlement provider configured, skipping metrics collection")
		return
	}

	byTier, err := bm.entitlementProvider.ActiveSubscriptionsByTier(ctx)
	if err != nil {
		bm.logger.Error("Failed to count active subscriptions", zap.Error(err))
	} else {
		for tier, count := range byTier {
			bm.activeSubscriptions.Record(ctx, count, AttrTier.String(tier))
		}
	}

	periodStart := monthStart(time.Now().UTC())
	saturated, err := bm.entitlementProvider.SaturatedOrganizationCount(ctx, periodStart)
	if err != nil {
		bm.logger.Error("Failed to count saturated organizations", zap.Error(err))
	} else {
		bm.saturatedOrganizations.Record(ctx, saturated)
	}
}

// monthStart truncates a time to the first instant of its calendar month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/infrastructure/telemetry"
)

// QuotaExceededError is returned when an organization's monthly cap is
// reached. It carries the usage snapshot so callers can show the caller
// where they stand.
type QuotaExceededError struct {
	Snapshot entitlement.UsageSnapshot
	Message  string
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return e.Message
}

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(snapshot entitlement.UsageSnapshot) *QuotaExceededError {
	return &QuotaExceededError{
		Snapshot: snapshot,
		Message: fmt.Sprintf("Monthly analysis limit reached (%d/%d)",
			snapshot.Consumed, snapshot.MonthlyCap),
	}
}

// UsageSummary describes an organization's entitlement and consumption
// for the current period.
type UsageSummary struct {
	OrganizationID  string    `json:"organization_id"`
	HasSubscription bool      `json:"has_subscription"`
	Tier            string    `json:"tier,omitempty"`
	MonthlyCap      int       `json:"monthly_cap"`
	Consumed        int       `json:"consumed"`
	Remaining       int       `json:"remaining"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	EndsAt          time.Time `json:"ends_at,omitempty"`
}

// QuotaService enforces the monthly analysis quota. Consume is the only
// gate: an analysis may run if and only if Consume granted it a unit.
type QuotaService struct {
	subscriptions entitlement.SubscriptionRepository
	ledger        entitlement.UsageLedger
	logger        *zap.Logger
	metrics       *telemetry.BusinessMetrics
	now           func() time.Time
}

// NewQuotaService creates a new QuotaService
func NewQuotaService(
	subscriptions entitlement.SubscriptionRepository,
	ledger entitlement.UsageLedger,
	logger *zap.Logger,
) *QuotaService {
	return &QuotaService{
		subscriptions: subscriptions,
		ledger:        ledger,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Test use only.
func (s *QuotaService) WithClock(now func() time.Time) *QuotaService {
	s.now = now
	return s
}

// WithMetrics attaches outcome counters. Optional.
func (s *QuotaService) WithMetrics(metrics *telemetry.BusinessMetrics) *QuotaService {
	s.metrics = metrics
	return s
}

// Consume attempts to claim one analysis unit for the organization.
// Without an active subscription the claim is denied, never granted:
// absence of entitlement data fails closed. The returned snapshot is
// valid in both outcomes.
func (s *QuotaService) Consume(ctx context.Context, organizationID string) (entitlement.UsageSnapshot, error) {
	if organizationID == "" {
		return entitlement.UsageSnapshot{}, shared.NewDomainError("INVALID_ORGANIZATION", "Organization ID cannot be empty")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "entitlement", "consume_quota")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOrganizationID, organizationID)

	now := s.now().UTC()
	period := entitlement.CurrentPeriod(now)

	denied := entitlement.UsageSnapshot{
		OrganizationID: organizationID,
		Period:         period,
		Allowed:        false,
	}

	sub, err := s.subscriptions.FindActive(ctx, organizationID)
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveSubscription) {
			s.logger.Info("Quota denied, no active subscription",
				zap.String("organization_id", organizationID))
			telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, string(telemetry.AnalysisOutcomeDeniedSubscription))
			s.metrics.RecordAnalysis(ctx, organizationID, telemetry.AnalysisOutcomeDeniedSubscription)
			return denied, nil
		}
		s.logger.Error("Failed to load subscription", zap.Error(err))
		telemetry.RecordError(span, err)
		return denied, shared.ErrDependencyFailed
	}

	if !sub.IsActive(now) {
		s.logger.Info("Quota denied, subscription lapsed",
			zap.String("organization_id", organizationID),
			zap.Time("ends_at", sub.EndsAt))
		telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, string(telemetry.AnalysisOutcomeDeniedSubscription))
		s.metrics.RecordAnalysis(ctx, organizationID, telemetry.AnalysisOutcomeDeniedSubscription)
		return denied, nil
	}

	snapshot, err := s.ledger.TryConsume(ctx, organizationID, period, sub.MonthlyCap)
	if err != nil {
		s.logger.Error("Failed to consume quota", zap.Error(err))
		telemetry.RecordError(span, err)
		return denied, shared.ErrDependencyFailed
	}

	if snapshot.Allowed {
		telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, string(telemetry.AnalysisOutcomeGranted))
		s.metrics.RecordAnalysis(ctx, organizationID, telemetry.AnalysisOutcomeGranted)
	} else {
		s.logger.Info("Quota denied, monthly cap reached",
			zap.String("organization_id", organizationID),
			zap.Int("consumed", snapshot.Consumed),
			zap.Int("monthly_cap", snapshot.MonthlyCap))
		telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, string(telemetry.AnalysisOutcomeDeniedQuota))
		s.metrics.RecordAnalysis(ctx, organizationID, telemetry.AnalysisOutcomeDeniedQuota)
	}
	return snapshot, nil
}

// Summary reports the organization's entitlement and current-period
// consumption without claiming a unit.
func (s *QuotaService) Summary(ctx context.Context, organizationID string) (*UsageSummary, error) {
	if organizationID == "" {
		return nil, shared.NewDomainError("INVALID_ORGANIZATION", "Organization ID cannot be empty")
	}

	now := s.now().UTC()
	period := entitlement.CurrentPeriod(now)

	summary := &UsageSummary{
		OrganizationID: organizationID,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
	}

	sub, err := s.subscriptions.FindActive(ctx, organizationID)
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveSubscription) {
			return summary, nil
		}
		return nil, shared.ErrDependencyFailed
	}

	summary.HasSubscription = sub.IsActive(now)
	summary.Tier = string(sub.Tier)
	summary.EndsAt = sub.EndsAt
	if summary.HasSubscription {
		summary.MonthlyCap = sub.MonthlyCap
	}

	snapshot, err := s.ledger.Snapshot(ctx, organizationID, period, summary.MonthlyCap)
	if err != nil {
		return nil, shared.ErrDependencyFailed
	}
	summary.Consumed = snapshot.Consumed
	summary.Remaining = snapshot.Remaining()

	return summary, nil
}

// Subscription returns the organization's active subscription, or
// shared.ErrNoActiveSubscription.
func (s *QuotaService) Subscription(ctx context.Context, organizationID string) (*entitlement.Subscription, error) {
	if organizationID == "" {
		return nil, shared.NewDomainError("INVALID_ORGANIZATION", "Organization ID cannot be empty")
	}
	return s.subscriptions.FindActive(ctx, organizationID)
}

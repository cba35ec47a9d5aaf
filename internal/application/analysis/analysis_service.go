package analysis

import (
	"context"
	"errors"

	"go.uber.org/zap"

	appentitlement "github.com/skininsight/backend/internal/application/entitlement"
	"github.com/skininsight/backend/internal/domain/identity"
	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/infrastructure/telemetry"
	"github.com/skininsight/backend/internal/infrastructure/vision"
)

// AnalyzeInput carries one analysis request from an authenticated caller.
type AnalyzeInput struct {
	Subject     string
	ImageBase64 string
	MediaType   string
	Prompt      string
	Model       string
}

// Service coordinates one metered analysis: resolve the caller's
// organization, claim a quota unit, then forward to the vision vendor.
// The quota unit is claimed before the vendor call; vendor failures do
// not refund it, keeping the ledger a strict upper bound on spend.
type Service struct {
	profiles identity.ProfileRepository
	quota    *appentitlement.QuotaService
	vision   vision.Client
	logger   *zap.Logger
}

// NewService creates a new analysis service
func NewService(
	profiles identity.ProfileRepository,
	quota *appentitlement.QuotaService,
	visionClient vision.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles: profiles,
		quota:    quota,
		vision:   visionClient,
		logger:   logger,
	}
}

// Analyze runs one metered image analysis for the authenticated subject.
// The vendor's response is returned verbatim for the handler to relay.
func (s *Service) Analyze(ctx context.Context, input AnalyzeInput) (*vision.Result, error) {
	if input.ImageBase64 == "" || input.Prompt == "" {
		return nil, shared.NewDomainError("MISSING_FIELDS", "Missing required fields: image and prompt")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "analysis", "analyze")
	defer span.End()
	if input.Model != "" {
		telemetry.SetAttributes(span, telemetry.SpanAttrModel, input.Model)
	}

	profile, err := s.profiles.FindBySubject(ctx, input.Subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("MISSING_ORGANIZATION", "User profile missing organization")
		}
		s.logger.Error("Failed to load profile", zap.Error(err))
		return nil, shared.ErrDependencyFailed
	}
	if !profile.HasOrganization() {
		return nil, shared.NewDomainError("MISSING_ORGANIZATION", "User profile missing organization")
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrOrganizationID, profile.OrganizationID)

	snapshot, err := s.quota.Consume(ctx, profile.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Allowed {
		return nil, appentitlement.NewQuotaExceededError(snapshot)
	}

	result, err := s.vision.Analyze(ctx, vision.AnalyzeRequest{
		ImageBase64: input.ImageBase64,
		MediaType:   input.MediaType,
		Prompt:      input.Prompt,
		Model:       input.Model,
	})
	if err != nil {
		s.logger.Error("Vision vendor call failed",
			zap.String("organization_id", profile.OrganizationID),
			zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, shared.ErrDependencyFailed
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrVendorStatus, result.StatusCode)
	s.logger.Info("Analysis completed",
		zap.String("organization_id", profile.OrganizationID),
		zap.Int("vendor_status", result.StatusCode),
		zap.Int("consumed", snapshot.Consumed),
		zap.Int("monthly_cap", snapshot.MonthlyCap))

	return result, nil
}

package entitlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/infrastructure/appstore"
	"github.com/skininsight/backend/internal/infrastructure/telemetry"
)

// PurchaseInput carries one store purchase event.
type PurchaseInput struct {
	OrganizationID string
	ProductID      string
	TransactionID  string
	Receipt        string
}

// PurchaseResult is the entitlement granted by a processed purchase.
type PurchaseResult struct {
	Tier       string    `json:"tier"`
	MonthlyCap int       `json:"monthly_cap"`
	EndsAt     time.Time `json:"ends_at"`
}

// PurchaseService applies store purchase events to subscriptions.
type PurchaseService struct {
	subscriptions entitlement.SubscriptionRepository
	catalog       entitlement.Catalog
	verifier      appstore.Verifier
	transactions  shared.TransactionStore
	logger        *zap.Logger
	metrics       *telemetry.BusinessMetrics
	now           func() time.Time
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	subscriptions entitlement.SubscriptionRepository,
	catalog entitlement.Catalog,
	verifier appstore.Verifier,
	transactions shared.TransactionStore,
	logger *zap.Logger,
) *PurchaseService {
	return &PurchaseService{
		subscriptions: subscriptions,
		catalog:       catalog,
		verifier:      verifier,
		transactions:  transactions,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Test use only.
func (s *PurchaseService) WithClock(now func() time.Time) *PurchaseService {
	s.now = now
	return s
}

// WithMetrics attaches purchase counters. Optional.
func (s *PurchaseService) WithMetrics(metrics *telemetry.BusinessMetrics) *PurchaseService {
	s.metrics = metrics
	return s
}

// ProcessPurchase validates the receipt, resolves the product and
// upserts the organization's subscription. A replayed transaction ID is
// a no-op that reports the entitlement already in force.
func (s *PurchaseService) ProcessPurchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if input.OrganizationID == "" {
		return nil, shared.NewDomainError("INVALID_ORGANIZATION", "Organization ID cannot be empty")
	}
	if input.ProductID == "" || input.TransactionID == "" || input.Receipt == "" {
		return nil, shared.NewDomainError("MISSING_FIELDS", "Missing required fields")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "entitlement", "process_purchase")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrganizationID, input.OrganizationID,
		telemetry.SpanAttrProductID, input.ProductID,
		telemetry.SpanAttrTransactionID, input.TransactionID,
	)

	product, ok := s.catalog.Lookup(input.ProductID)
	if !ok {
		s.logger.Warn("Purchase for unknown product",
			zap.String("organization_id", input.OrganizationID),
			zap.String("product_id", input.ProductID))
		return nil, shared.ErrUnknownProduct
	}

	verification, err := s.verifier.VerifyReceipt(ctx, input.Receipt)
	if err != nil {
		s.logger.Error("Receipt verification failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, shared.ErrDependencyFailed
	}
	if !verification.Valid {
		s.logger.Warn("Invalid receipt",
			zap.String("organization_id", input.OrganizationID),
			zap.Int("store_status", verification.Status))
		return nil, shared.NewDomainError("INVALID_RECEIPT", "Receipt was rejected by the store")
	}

	fresh, err := s.transactions.MarkProcessed(ctx, input.TransactionID, shared.DefaultTransactionTTL)
	if err != nil {
		// The dedupe guard is advisory; the upsert itself is idempotent
		// per transaction, so proceed rather than reject the purchase.
		s.logger.Warn("Transaction store unavailable, proceeding without dedupe", zap.Error(err))
		fresh = true
	}
	if !fresh {
		s.logger.Info("Replayed purchase transaction, returning current entitlement",
			zap.String("organization_id", input.OrganizationID),
			zap.String("transaction_id", input.TransactionID))
		if sub, findErr := s.subscriptions.FindActive(ctx, input.OrganizationID); findErr == nil {
			return &PurchaseResult{
				Tier:       string(sub.Tier),
				MonthlyCap: sub.MonthlyCap,
				EndsAt:     sub.EndsAt,
			}, nil
		}
		// The recorded transaction never landed; fall through and apply it.
	}

	now := s.now().UTC()
	sub, err := s.subscriptions.Upsert(ctx, input.OrganizationID, product, input.TransactionID, now)
	if err != nil {
		s.logger.Error("Failed to upsert subscription", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, shared.ErrDependencyFailed
	}

	s.logger.Info("Purchase applied",
		zap.String("organization_id", input.OrganizationID),
		zap.String("product_id", product.ID),
		zap.String("tier", string(product.Tier)),
		zap.Time("ends_at", sub.EndsAt))
	telemetry.SetAttributes(span, telemetry.SpanAttrTier, string(product.Tier))
	s.metrics.RecordPurchase(ctx, product.ID, string(product.Tier))

	return &PurchaseResult{
		Tier:       string(sub.Tier),
		MonthlyCap: sub.MonthlyCap,
		EndsAt:     sub.EndsAt,
	}, nil
}

package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/domain/identity"
	"github.com/skininsight/backend/internal/infrastructure/appstore"
	"github.com/skininsight/backend/internal/infrastructure/vision"
	"github.com/skininsight/backend/internal/interfaces/http/middleware"
)

// testNow pins the clock so period boundaries are stable in assertions.
var testNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

// withSubject simulates the auth middleware having verified a token.
func withSubject(subject string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if subject != "" {
			c.Set(middleware.AuthSubjectKey, subject)
		}
		c.Next()
	}
}

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) FindBySubject(ctx context.Context, subject string) (*identity.Profile, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Profile), args.Error(1)
}

type mockSubscriptionRepository struct {
	mock.Mock
}

func (m *mockSubscriptionRepository) FindActive(ctx context.Context, organizationID string) (*entitlement.Subscription, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) Upsert(ctx context.Context, organizationID string, product entitlement.Product, transactionID string, now time.Time) (*entitlement.Subscription, error) {
	args := m.Called(ctx, organizationID, product, transactionID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

type mockUsageLedger struct {
	mock.Mock
}

func (m *mockUsageLedger) TryConsume(ctx context.Context, organizationID string, period entitlement.Period, cap int) (entitlement.UsageSnapshot, error) {
	args := m.Called(ctx, organizationID, period, cap)
	return args.Get(0).(entitlement.UsageSnapshot), args.Error(1)
}

func (m *mockUsageLedger) Snapshot(ctx context.Context, organizationID string, period entitlement.Period, cap int) (entitlement.UsageSnapshot, error) {
	args := m.Called(ctx, organizationID, period, cap)
	return args.Get(0).(entitlement.UsageSnapshot), args.Error(1)
}

type mockVisionClient struct {
	mock.Mock
}

func (m *mockVisionClient) Analyze(ctx context.Context, req vision.AnalyzeRequest) (*vision.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vision.Result), args.Error(1)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyReceipt(ctx context.Context, receipt string) (*appstore.Verification, error) {
	args := m.Called(ctx, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appstore.Verification), args.Error(1)
}

type mockTransactionStore struct {
	mock.Mock
}

func (m *mockTransactionStore) MarkProcessed(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, transactionID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockTransactionStore) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTransactionStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

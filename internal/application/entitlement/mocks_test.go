package entitlement

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/infrastructure/appstore"
)

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

package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appentitlement "github.com/skininsight/backend/internal/application/entitlement"
	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/domain/identity"
	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/infrastructure/vision"
)

var testNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

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

type analysisFixture struct {
	profiles *mockProfileRepository
	subs     *mockSubscriptionRepository
	ledger   *mockUsageLedger
	vision   *mockVisionClient
	svc      *Service
}

func newAnalysisFixture() *analysisFixture {
	profiles := new(mockProfileRepository)
	subs := new(mockSubscriptionRepository)
	ledger := new(mockUsageLedger)
	visionClient := new(mockVisionClient)
	quota := appentitlement.NewQuotaService(subs, ledger, zap.NewNop()).
		WithClock(func() time.Time { return testNow })
	return &analysisFixture{
		profiles: profiles,
		subs:     subs,
		ledger:   ledger,
		vision:   visionClient,
		svc:      NewService(profiles, quota, visionClient, zap.NewNop()),
	}
}

func practitionerProfile(subject, organizationID string) *identity.Profile {
	return &identity.Profile{
		BaseEntity:     shared.NewBaseEntity(),
		Subject:        subject,
		OrganizationID: organizationID,
		DisplayName:    "Dr. Example",
	}
}

func starterSubscription(organizationID string) *entitlement.Subscription {
	product, _ := entitlement.DefaultCatalog().Lookup("com.skininsightpro.starter.monthly")
	return entitlement.NewSubscription(organizationID, product, "txn-1", testNow.AddDate(0, 0, -5))
}

func validAnalyzeInput() AnalyzeInput {
	return AnalyzeInput{
		Subject:     "user-1",
		ImageBase64: "aW1hZ2U=",
		MediaType:   "image/png",
		Prompt:      "Describe the lesion",
	}
}

func TestAnalysisService_Analyze(t *testing.T) {
	ctx := context.Background()
	period := entitlement.CurrentPeriod(testNow)

	t.Run("relays the vendor response when a unit is granted", func(t *testing.T) {
		f := newAnalysisFixture()
		input := validAnalyzeInput()

		f.profiles.On("FindBySubject", ctx, "user-1").Return(practitionerProfile("user-1", "org-1"), nil)
		f.subs.On("FindActive", ctx, "org-1").Return(starterSubscription("org-1"), nil)
		f.ledger.On("TryConsume", ctx, "org-1", period, 400).Return(entitlement.UsageSnapshot{
			OrganizationID: "org-1",
			Period:         period,
			Consumed:       7,
			MonthlyCap:     400,
			Allowed:        true,
		}, nil)
		f.vision.On("Analyze", ctx, vision.AnalyzeRequest{
			ImageBase64: input.ImageBase64,
			MediaType:   input.MediaType,
			Prompt:      input.Prompt,
		}).Return(&vision.Result{
			StatusCode:  200,
			Body:        []byte(`{"content":[{"type":"text","text":"ok"}]}`),
			ContentType: "application/json",
		}, nil)

		result, err := f.svc.Analyze(ctx, input)
		require.NoError(t, err)

		assert.True(t, result.OK())
		assert.Equal(t, 200, result.StatusCode)
		f.vision.AssertExpectations(t)
	})

	t.Run("vendor errors pass through as results", func(t *testing.T) {
		f := newAnalysisFixture()
		input := validAnalyzeInput()

		f.profiles.On("FindBySubject", ctx, "user-1").Return(practitionerProfile("user-1", "org-1"), nil)
		f.subs.On("FindActive", ctx, "org-1").Return(starterSubscription("org-1"), nil)
		f.ledger.On("TryConsume", ctx, "org-1", period, 400).Return(entitlement.UsageSnapshot{
			OrganizationID: "org-1",
			Period:         period,
			Consumed:       8,
			MonthlyCap:     400,
			Allowed:        true,
		}, nil)
		f.vision.On("Analyze", ctx, mock.Anything).Return(&vision.Result{
			StatusCode:  429,
			Body:        []byte(`{"error":{"type":"rate_limit_error"}}`),
			ContentType: "application/json",
		}, nil)

		result, err := f.svc.Analyze(ctx, input)
		require.NoError(t, err)

		assert.False(t, result.OK())
		assert.Equal(t, 429, result.StatusCode)
	})

	t.Run("rejects requests without image or prompt", func(t *testing.T) {
		f := newAnalysisFixture()

		for _, input := range []AnalyzeInput{
			{Subject: "user-1", Prompt: "p"},
			{Subject: "user-1", ImageBase64: "aW1n"},
		} {
			_, err := f.svc.Analyze(ctx, input)
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, "MISSING_FIELDS", domainErr.Code)
		}
		f.profiles.AssertNotCalled(t, "FindBySubject", mock.Anything, mock.Anything)
	})

	t.Run("rejects subjects without a profile", func(t *testing.T) {
		f := newAnalysisFixture()
		f.profiles.On("FindBySubject", ctx, "user-1").Return(nil, shared.ErrNotFound)

		_, err := f.svc.Analyze(ctx, validAnalyzeInput())

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "MISSING_ORGANIZATION", domainErr.Code)
	})

	t.Run("rejects profiles without an organization", func(t *testing.T) {
		f := newAnalysisFixture()
		f.profiles.On("FindBySubject", ctx, "user-1").Return(practitionerProfile("user-1", ""), nil)

		_, err := f.svc.Analyze(ctx, validAnalyzeInput())

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "MISSING_ORGANIZATION", domainErr.Code)
		f.subs.AssertNotCalled(t, "FindActive", mock.Anything, mock.Anything)
	})

	t.Run("quota exhaustion blocks the vendor call", func(t *testing.T) {
		f := newAnalysisFixture()
		f.profiles.On("FindBySubject", ctx, "user-1").Return(practitionerProfile("user-1", "org-1"), nil)
		f.subs.On("FindActive", ctx, "org-1").Return(starterSubscription("org-1"), nil)
		f.ledger.On("TryConsume", ctx, "org-1", period, 400).Return(entitlement.UsageSnapshot{
			OrganizationID: "org-1",
			Period:         period,
			Consumed:       400,
			MonthlyCap:     400,
			Allowed:        false,
		}, nil)

		_, err := f.svc.Analyze(ctx, validAnalyzeInput())

		var quotaErr *appentitlement.QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, 400, quotaErr.Snapshot.MonthlyCap)
		f.vision.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
	})

	t.Run("no subscription blocks the vendor call", func(t *testing.T) {
		f := newAnalysisFixture()
		f.profiles.On("FindBySubject", ctx, "user-1").Return(practitionerProfile("user-1", "org-1"), nil)
		f.subs.On("FindActive", ctx, "org-1").Return(nil, shared.ErrNoActiveSubscription)

		_, err := f.svc.Analyze(ctx, validAnalyzeInput())

		var quotaErr *appentitlement.QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		f.vision.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
		f.ledger.AssertNotCalled(t, "TryConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transport failure to the vendor does not refund the unit", func(t *testing.T) {
		f := newAnalysisFixture()
		f.profiles.On("FindBySubject", ctx, "user-1").Return(practitionerProfile("user-1", "org-1"), nil)
		f.subs.On("FindActive", ctx, "org-1").Return(starterSubscription("org-1"), nil)
		f.ledger.On("TryConsume", ctx, "org-1", period, 400).Return(entitlement.UsageSnapshot{
			OrganizationID: "org-1",
			Period:         period,
			Consumed:       9,
			MonthlyCap:     400,
			Allowed:        true,
		}, nil)
		f.vision.On("Analyze", ctx, mock.Anything).Return(nil, assert.AnError)

		_, err := f.svc.Analyze(ctx, validAnalyzeInput())
		assert.ErrorIs(t, err, shared.ErrDependencyFailed)
		f.ledger.AssertNumberOfCalls(t, "TryConsume", 1)
	})
}

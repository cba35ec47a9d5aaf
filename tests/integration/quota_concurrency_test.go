package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/infrastructure/persistence"
)

// Concurrent consumers racing on the same counter must never push the
// ledger past the cap. The atomic conditional upsert is the only thing
// standing between a burst of parallel requests and overspend, so this
// test hammers it from many goroutines against a real PostgreSQL.
func TestUsageLedger_ConcurrentConsume_NeverExceedsCap(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ledger := persistence.NewUsageLedgerRepository(testDB.DB)

	const (
		organizationID = "org-concurrent"
		monthlyCap     = 25
		attempts       = 60
	)

	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	period := entitlement.CurrentPeriod(now)

	var granted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			snapshot, err := ledger.TryConsume(context.Background(), organizationID, period, monthlyCap)
			require.NoError(t, err)
			if snapshot.Allowed {
				granted.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(monthlyCap), granted.Load(),
		"exactly cap units must be granted, no more, no less")

	final, err := ledger.Snapshot(context.Background(), organizationID, period, monthlyCap)
	require.NoError(t, err)
	assert.Equal(t, monthlyCap, final.Consumed)
	assert.Equal(t, 0, final.Remaining())
}

func TestUsageLedger_PeriodsAreIsolated(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ledger := persistence.NewUsageLedgerRepository(testDB.DB)
	ctx := context.Background()

	const organizationID = "org-periods"
	const monthlyCap = 3

	april := entitlement.CurrentPeriod(time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC))
	may := entitlement.CurrentPeriod(time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC))

	// Exhaust April
	for i := 0; i < monthlyCap; i++ {
		snapshot, err := ledger.TryConsume(ctx, organizationID, april, monthlyCap)
		require.NoError(t, err)
		require.True(t, snapshot.Allowed)
	}
	denied, err := ledger.TryConsume(ctx, organizationID, april, monthlyCap)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	// May starts from zero
	snapshot, err := ledger.TryConsume(ctx, organizationID, may, monthlyCap)
	require.NoError(t, err)
	assert.True(t, snapshot.Allowed)
	assert.Equal(t, 1, snapshot.Consumed)

	// April stays exhausted
	aprilSnapshot, err := ledger.Snapshot(ctx, organizationID, april, monthlyCap)
	require.NoError(t, err)
	assert.Equal(t, monthlyCap, aprilSnapshot.Consumed)
}

func TestUsageLedger_OrganizationsAreIsolated(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ledger := persistence.NewUsageLedgerRepository(testDB.DB)
	ctx := context.Background()

	period := entitlement.CurrentPeriod(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		snapshot, err := ledger.TryConsume(ctx, "org-a", period, 5)
		require.NoError(t, err)
		require.True(t, snapshot.Allowed)
	}

	other, err := ledger.Snapshot(ctx, "org-b", period, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, other.Consumed)
	assert.Equal(t, 5, other.Remaining())
}

// Concurrent first purchases race on the partial unique index. Exactly
// one row may win; the rest must land on the update path and leave a
// single active subscription behind.
func TestSubscriptionRepository_ConcurrentUpsert_SingleActiveRow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	repo := persistence.NewSubscriptionRepository(testDB.DB)
	catalog := entitlement.DefaultCatalog()

	product, ok := catalog.Lookup("com.skininsightpro.starter.monthly")
	require.True(t, ok)

	const organizationID = "org-race"
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.Upsert(context.Background(), organizationID, product, "txn-race", now)
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	err := testDB.DB.Table("subscriptions").
		Where("organization_id = ? AND status = ?", organizationID, "active").
		Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "partial unique index must collapse the race to one active row")

	sub, err := repo.FindActive(context.Background(), organizationID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierStarter, sub.Tier)
	assert.Equal(t, 400, sub.MonthlyCap)
}

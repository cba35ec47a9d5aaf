package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentPeriod(t *testing.T) {
	t.Run("spans the calendar month in UTC", func(t *testing.T) {
		now := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
		period := CurrentPeriod(now)

		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), period.Start)
		assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), period.End)
		assert.True(t, period.Contains(now))
		assert.False(t, period.Contains(period.End))
	})

	t.Run("normalizes non-UTC input", func(t *testing.T) {
		loc := time.FixedZone("UTC+9", 9*3600)
		// 2026-09-01 05:00 +09:00 is still August in UTC.
		now := time.Date(2026, 9, 1, 5, 0, 0, 0, loc)
		period := CurrentPeriod(now)

		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), period.Start)
	})
}

func TestUsageSnapshotRemaining(t *testing.T) {
	t.Run("under cap", func(t *testing.T) {
		s := UsageSnapshot{Consumed: 30, MonthlyCap: 100}
		assert.Equal(t, 70, s.Remaining())
	})

	t.Run("at cap", func(t *testing.T) {
		s := UsageSnapshot{Consumed: 100, MonthlyCap: 100}
		assert.Equal(t, 0, s.Remaining())
	})

	t.Run("never negative", func(t *testing.T) {
		s := UsageSnapshot{Consumed: 140, MonthlyCap: 100}
		assert.Equal(t, 0, s.Remaining())
	})
}

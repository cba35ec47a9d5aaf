package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skininsight/backend/internal/domain/entitlement"
)

// UsageCounterModel is the GORM model for per-period usage counters
type UsageCounterModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_usage_counters_org_period"`
	PeriodStart    time.Time `gorm:"not null;uniqueIndex:idx_usage_counters_org_period"`
	PeriodEnd      time.Time `gorm:"not null"`
	Consumed       int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageCounterModel) TableName() string {
	return "usage_counters"
}

// UsageLedgerRepository implements entitlement.UsageLedger on GORM.
type UsageLedgerRepository struct {
	db *gorm.DB
}

// NewUsageLedgerRepository creates a new usage ledger repository
func NewUsageLedgerRepository(db *gorm.DB) *UsageLedgerRepository {
	return &UsageLedgerRepository{db: db}
}

// TryConsume increments the counter if and only if the cap is not yet
// reached. The check and the increment are one statement: an insert with
// a conditional conflict update, so concurrent callers serialize on the
// row and the counter can never pass the cap.
func (r *UsageLedgerRepository) TryConsume(ctx context.Context, organizationID string, period entitlement.Period, cap int) (entitlement.UsageSnapshot, error) {
	denied := entitlement.UsageSnapshot{
		OrganizationID: organizationID,
		Period:         period,
		MonthlyCap:     cap,
		Allowed:        false,
	}
	if cap <= 0 {
		return denied, nil
	}

	model := &UsageCounterModel{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		Consumed:       1,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"consumed":   gorm.Expr("usage_counters.consumed + 1"),
			"updated_at": time.Now().UTC(),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{
				Column: clause.Column{Table: "usage_counters", Name: "consumed"},
				Value:  cap,
			},
		}},
	}).Create(model)
	if res.Error != nil {
		return denied, res.Error
	}

	snapshot, err := r.Snapshot(ctx, organizationID, period, cap)
	if err != nil {
		return denied, err
	}
	snapshot.Allowed = res.RowsAffected == 1
	return snapshot, nil
}

// Snapshot reads current consumption without incrementing. A missing
// counter row means nothing has been consumed this period.
func (r *UsageLedgerRepository) Snapshot(ctx context.Context, organizationID string, period entitlement.Period, cap int) (entitlement.UsageSnapshot, error) {
	snapshot := entitlement.UsageSnapshot{
		OrganizationID: organizationID,
		Period:         period,
		MonthlyCap:     cap,
	}

	var model UsageCounterModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND period_start = ?", organizationID, period.Start).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			snapshot.Allowed = cap > 0
			return snapshot, nil
		}
		return snapshot, err
	}

	snapshot.Consumed = model.Consumed
	snapshot.Allowed = model.Consumed < cap
	return snapshot, nil
}

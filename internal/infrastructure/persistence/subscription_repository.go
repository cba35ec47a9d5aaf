package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/domain/shared"
)

// SubscriptionModel is the GORM model for subscriptions
type SubscriptionModel struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID        string    `gorm:"type:varchar(64);not null;index"`
	ProductID             string    `gorm:"type:varchar(128);not null"`
	Tier                  string    `gorm:"type:varchar(32);not null"`
	MonthlyCap            int       `gorm:"not null"`
	Status                string    `gorm:"type:varchar(16);not null;default:'active'"`
	ProviderTransactionID string    `gorm:"type:varchar(128);not null"`
	StartedAt             time.Time `gorm:"not null"`
	EndsAt                time.Time `gorm:"not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToEntity converts the model to a domain entity
func (m *SubscriptionModel) ToEntity() *entitlement.Subscription {
	return &entitlement.Subscription{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		OrganizationID:        m.OrganizationID,
		ProductID:             m.ProductID,
		Tier:                  entitlement.Tier(m.Tier),
		MonthlyCap:            m.MonthlyCap,
		Status:                entitlement.SubscriptionStatus(m.Status),
		ProviderTransactionID: m.ProviderTransactionID,
		StartedAt:             m.StartedAt,
		EndsAt:                m.EndsAt,
	}
}

// SubscriptionModelFromEntity creates a model from a domain entity
func SubscriptionModelFromEntity(e *entitlement.Subscription) *SubscriptionModel {
	return &SubscriptionModel{
		ID:                    e.ID,
		OrganizationID:        e.OrganizationID,
		ProductID:             e.ProductID,
		Tier:                  string(e.Tier),
		MonthlyCap:            e.MonthlyCap,
		Status:                string(e.Status),
		ProviderTransactionID: e.ProviderTransactionID,
		StartedAt:             e.StartedAt,
		EndsAt:                e.EndsAt,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
}

// SubscriptionRepository implements entitlement.SubscriptionRepository on GORM.
// A partial unique index on (organization_id) WHERE status = 'active' backs
// the single-active-row invariant.
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindActive returns the organization's active subscription
func (r *SubscriptionRepository) FindActive(ctx context.Context, organizationID string) (*entitlement.Subscription, error) {
	var model SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, string(entitlement.StatusActive)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNoActiveSubscription
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Upsert records a purchase. When the organization already holds an active
// subscription the row is updated in place, otherwise a new row is inserted.
// Concurrent first purchases are resolved by the conflict target: the loser
// of the insert race falls through to the update path.
func (r *SubscriptionRepository) Upsert(ctx context.Context, organizationID string, product entitlement.Product, transactionID string, now time.Time) (*entitlement.Subscription, error) {
	var result *entitlement.Subscription

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := SubscriptionModelFromEntity(
			entitlement.NewSubscription(organizationID, product, transactionID, now))

		insert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "organization_id"}},
			// Literal predicate: index inference on the partial unique
			// index requires it verbatim, not as a bind parameter.
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "status = 'active'"},
			}},
			DoNothing: true,
		}).Create(candidate)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 1 {
			result = candidate.ToEntity()
			return nil
		}

		// An active row already exists; refresh its terms in place.
		var existing SubscriptionModel
		if err := tx.Where("organization_id = ? AND status = ?",
			organizationID, string(entitlement.StatusActive)).First(&existing).Error; err != nil {
			return err
		}

		entity := existing.ToEntity()
		entity.ApplyPurchase(product, transactionID, now)

		updated := SubscriptionModelFromEntity(entity)
		if err := tx.Model(&SubscriptionModel{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"product_id":              updated.ProductID,
				"tier":                    updated.Tier,
				"monthly_cap":             updated.MonthlyCap,
				"status":                  updated.Status,
				"provider_transaction_id": updated.ProviderTransactionID,
				"started_at":              updated.StartedAt,
				"ends_at":                 updated.EndsAt,
				"updated_at":              now,
			}).Error; err != nil {
			return err
		}

		result = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skininsight/backend/internal/domain/identity"
	"github.com/skininsight/backend/internal/domain/shared"
)

// ProfileModel is the GORM model for practitioner profiles
type ProfileModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Subject        string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	OrganizationID string    `gorm:"type:varchar(64)"`
	DisplayName    string    `gorm:"type:varchar(128)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (ProfileModel) TableName() string {
	return "organization_profiles"
}

// ToEntity converts the model to a domain entity
func (m *ProfileModel) ToEntity() *identity.Profile {
	return &identity.Profile{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Subject:        m.Subject,
		OrganizationID: m.OrganizationID,
		DisplayName:    m.DisplayName,
	}
}

// ProfileRepository implements identity.ProfileRepository on GORM.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindBySubject returns the profile for a token subject
func (r *ProfileRepository) FindBySubject(ctx context.Context, subject string) (*identity.Profile, error) {
	var model ProfileModel
	err := r.db.WithContext(ctx).Where("subject = ?", subject).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

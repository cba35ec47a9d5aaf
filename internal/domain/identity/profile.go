package identity

import (
	"context"

	"github.com/skininsight/backend/internal/domain/shared"
)

// Profile links an authenticated subject to the organization it bills
// against. Every practitioner account belongs to exactly one organization.
type Profile struct {
	shared.BaseEntity
	Subject        string
	OrganizationID string
	DisplayName    string
}

// HasOrganization reports whether the profile is billable.
func (p *Profile) HasOrganization() bool {
	return p.OrganizationID != ""
}

// ProfileRepository resolves authenticated subjects to profiles.
type ProfileRepository interface {
	// FindBySubject returns the profile for a token subject, or
	// shared.ErrNotFound when the subject has no profile.
	FindBySubject(ctx context.Context, subject string) (*Profile, error)
}

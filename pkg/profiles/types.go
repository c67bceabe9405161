package profiles

import (
	"errors"
	"time"

	"github.com/harborlight/beacon/pkg/auth"
)

// ErrNotFound is returned when no profile exists for the given identity.
var ErrNotFound = errors.New("profile not found")

// Profile is the application-level record for one identity. ID is the
// identity's UUID from the auth backend; the row is created together
// with the identity and removed when the identity is deleted.
type Profile struct {
	ID       string     `json:"id"`
	FullName string     `json:"full_name"`
	Email    string     `json:"email"`
	Role     auth.Role  `json:"role"`
	Region   *string    `json:"region,omitempty"`
	Mobile   string     `json:"mobile,omitempty"`
	District string     `json:"district,omitempty"`
	Gender   string     `json:"gender,omitempty"`
	DOB      *time.Time `json:"dob,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegionValue returns the region or "" when unset.
func (p *Profile) RegionValue() string {
	if p.Region == nil {
		return ""
	}
	return *p.Region
}

// Validate checks the fields that the storage layer refuses to persist
// without.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	if p.Email == "" {
		return errors.New("profile email is required")
	}
	if p.FullName == "" {
		return errors.New("profile full name is required")
	}
	if !p.Role.Valid() {
		return errors.New("unrecognized role: " + string(p.Role))
	}
	if p.Role.RegionScoped() && p.RegionValue() == "" {
		return errors.New("region is required for role " + string(p.Role))
	}
	return nil
}

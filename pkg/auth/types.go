package auth

import "time"

// Identity represents a credential-bearing principal issued by the hosted
// auth backend. The application reads identities, it never creates or
// mutates them outside the privileged admin API.
type Identity struct {
	ID        string     `json:"id"` // UUID assigned by the backend
	Email     string     `json:"email"`
	Confirmed bool       `json:"confirmed"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// Role represents an application-level role. The set is closed; any value
// outside it is rejected at intake, storage and response boundaries.
type Role string

const (
	// RoleSuperAdmin sees all regions and manages users.
	RoleSuperAdmin Role = "super_admin"
	// RoleRegionalAdmin manages submissions within its own region.
	RoleRegionalAdmin Role = "regional_admin"
	// RoleCoordinator handles volunteer coordination within its own region.
	RoleCoordinator Role = "coordinator"
)

// AllRoles returns every recognized role.
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleRegionalAdmin, RoleCoordinator}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleRegionalAdmin, RoleCoordinator:
		return true
	}
	return false
}

// RegionScoped reports whether r is restricted to its assigned region.
// Only the super admin bypasses region scoping.
func (r Role) RegionScoped() bool {
	return r.Valid() && r != RoleSuperAdmin
}

// AdminCapable reports whether r grants access to the admin dashboard
// at all. Unrecognized roles are never admin-capable.
func (r Role) AdminCapable() bool {
	return r.Valid()
}

// RoleSet is a collection of roles compared by membership.
type RoleSet []Role

// Contains reports whether the set includes r.
func (s RoleSet) Contains(r Role) bool {
	for _, member := range s {
		if member == r {
			return true
		}
	}
	return false
}

// ParseRole validates a raw role string from an untrusted boundary and
// returns the typed role. Unrecognized values are rejected rather than
// passed through, so scoping logic never sees a role it does not know.
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	return r, r.Valid()
}

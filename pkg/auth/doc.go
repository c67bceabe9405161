// Package auth defines the identity and role model for the Beacon admin
// backend.
//
// # Overview
//
// Identities are issued and owned by the hosted auth backend; Beacon only
// ever reads them. Application-level authorization is driven by a closed
// role enumeration attached to each identity's profile:
//
//	RoleSuperAdmin    - organization-wide, sees and manages all regions
//	RoleRegionalAdmin - restricted to its assigned region
//	RoleCoordinator   - restricted to its assigned region
//
// Roles are compared by set membership only. The single exception is
// RoleSuperAdmin, which bypasses region scoping entirely (see pkg/scope).
//
// Role values are validated at every boundary - request intake, storage
// and responses - so an unrecognized role string can never slip through
// and silently bypass scoping logic.
//
// # Related Packages
//
//   - pkg/guard: the authorization decision function and HTTP middleware
//   - pkg/profiles: profile resolution for an identity
//   - pkg/session: session lifecycle against the hosted backend
package auth

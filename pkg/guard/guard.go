package guard

import (
	"context"
	"errors"

	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/contextkeys"
	"github.com/harborlight/beacon/pkg/profiles"
	"github.com/harborlight/beacon/pkg/scope"
	"github.com/harborlight/beacon/pkg/session"
)

var (
	// ErrUnauthenticated means no usable caller identity: no session,
	// an expired session, or an identity with no profile row.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller is signed in but their role does
	// not grant the requested resource.
	ErrForbidden = errors.New("forbidden")
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// AuthContext is the resolved caller attached to the request context
// once authentication succeeds.
type AuthContext struct {
	Profile *profiles.Profile
	Session *session.Session
}

// Scope builds the query filter for the caller, optionally carrying a
// search term.
func (a *AuthContext) Scope(search string) scope.Filter {
	return scope.ForRole(a.Profile.Role, a.Profile.Region).WithSearch(search)
}

// Authorize decides whether a resolved profile may access a resource
// restricted to the given roles. A nil profile is unauthenticated. An
// empty role list admits any authenticated admin.
func Authorize(p *profiles.Profile, required ...auth.Role) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.Role.Valid() {
		// Fail closed on roles this build does not recognize.
		return ErrForbidden
	}
	if len(required) == 0 {
		return nil
	}
	for _, role := range required {
		if p.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// DefaultPage is the landing page for a role, used as the redirect
// target when a browser request is denied.
func DefaultPage(role auth.Role) string {
	switch role {
	case auth.RoleSuperAdmin:
		return "/admin"
	case auth.RoleRegionalAdmin, auth.RoleCoordinator:
		return "/dashboard"
	default:
		return LoginPath
	}
}

// FromContext retrieves the caller placed on the context by the
// middleware.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return ac, ok && ac != nil
}

// ProfileFromContext is a convenience for handlers that only need the
// caller's profile.
func ProfileFromContext(ctx context.Context) (*profiles.Profile, bool) {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return ac.Profile, true
}

package guard

import (
	"net/http"

	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/contextkeys"
	"github.com/harborlight/beacon/pkg/httputil"
	"github.com/harborlight/beacon/pkg/idle"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
	"github.com/harborlight/beacon/pkg/session"
)

// Middleware authenticates admin requests and enforces role checks.
type Middleware struct {
	sessions *session.Store
	resolver *profiles.Resolver
	watcher  *idle.Watcher
	cookie   session.CookieConfig
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewMiddleware wires the guard middleware. watcher and metrics may be
// nil in tests.
func NewMiddleware(sessions *session.Store, resolver *profiles.Resolver, watcher *idle.Watcher,
	cookie session.CookieConfig, metrics *observability.Metrics, logger *observability.Logger) *Middleware {
	return &Middleware{
		sessions: sessions,
		resolver: resolver,
		watcher:  watcher,
		cookie:   cookie,
		metrics:  metrics,
		logger:   logger,
	}
}

// Authenticate resolves the caller from the session token and attaches
// the AuthContext. Requests without a live session and profile are
// denied as unauthenticated; touching the session slides its idle TTL.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.TokenFromRequest(r, m.cookie.Name)
		if token == "" {
			m.denyUnauthenticated(w, r, "no session")
			return
		}

		sess, err := m.sessions.Touch(r.Context(), token)
		if err == session.ErrNotFound {
			session.ClearCookie(w, m.cookie)
			m.denyUnauthenticated(w, r, "session expired")
			return
		}
		if err != nil {
			m.logger.WithError(err).Error("failed to resolve session")
			httputil.WriteInternalError(w, err)
			return
		}

		profile, err := m.resolver.Resolve(r.Context(), sess.IdentityID)
		if err == profiles.ErrNotFound {
			// An identity without a profile has no standing in the
			// dashboard at all, same as not being signed in.
			m.denyUnauthenticated(w, r, "no profile for identity")
			return
		}
		if err != nil {
			m.logger.WithError(err).Error("failed to resolve profile")
			httputil.WriteInternalError(w, err)
			return
		}

		if m.watcher != nil {
			m.watcher.Touch(token)
		}

		ctx := contextkeys.WithAuth(r.Context(), &AuthContext{Profile: profile, Session: sess})
		ctx = contextkeys.WithSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns middleware admitting only callers whose role is
// in the given set. Must run after Authenticate.
func (m *Middleware) RequireRole(required ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := FromContext(r.Context())
			if !ok {
				m.denyUnauthenticated(w, r, "missing auth context")
				return
			}

			if err := Authorize(ac.Profile, required...); err != nil {
				m.denyForbidden(w, r, ac)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) denyUnauthenticated(w http.ResponseWriter, r *http.Request, reason string) {
	if m.metrics != nil {
		m.metrics.AuthzDenialsTotal.WithLabelValues("unauthenticated").Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"reason": reason,
	}).Debug("request denied as unauthenticated")

	if httputil.WantsHTML(r) {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}
	httputil.WriteUnauthorized(w, "authentication required")
}

func (m *Middleware) denyForbidden(w http.ResponseWriter, r *http.Request, ac *AuthContext) {
	if m.metrics != nil {
		m.metrics.AuthzDenialsTotal.WithLabelValues("forbidden").Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"path": r.URL.Path,
		"role": string(ac.Profile.Role),
	}).Info("request denied for role")

	// The session survives a forbidden request; the browser just lands
	// back on its own page.
	if httputil.WantsHTML(r) {
		http.Redirect(w, r, DefaultPage(ac.Profile.Role), http.StatusSeeOther)
		return
	}
	httputil.WriteForbidden(w, "insufficient role")
}

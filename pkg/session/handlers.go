package session

import (
	"context"
	"net/http"

	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/contextkeys"
	"github.com/harborlight/beacon/pkg/httputil"
	"github.com/harborlight/beacon/pkg/idle"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
)

// RecoverySender asks the auth backend to mail a password link.
type RecoverySender interface {
	SendRecoveryEmail(ctx context.Context, email string) error
}

// Handler serves the sign-in, sign-out and credential-reset endpoints.
type Handler struct {
	auth     *OIDCAuthenticator
	store    *Store
	resolver *profiles.Resolver
	watcher  *idle.Watcher
	recorder audit.Recorder
	recovery RecoverySender
	cookie   CookieConfig
	logger   *observability.Logger
}

// NewHandler wires the auth flow handler. watcher may be nil in tests.
func NewHandler(auth *OIDCAuthenticator, store *Store, resolver *profiles.Resolver,
	watcher *idle.Watcher, recorder audit.Recorder, recovery RecoverySender,
	cookie CookieConfig, logger *observability.Logger) *Handler {
	return &Handler{
		auth:     auth,
		store:    store,
		resolver: resolver,
		watcher:  watcher,
		recorder: recorder,
		recovery: recovery,
		cookie:   cookie,
		logger:   logger,
	}
}

// Login handles GET /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.auth.InitiateLogin(w, r)
}

// Callback handles GET /auth/callback: the identity is verified, then a
// session is only created if the identity actually has a profile. An
// identity without one is sent back to sign-in, exactly like an
// unauthenticated visitor.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.HandleCallback(w, r)
	if err != nil {
		h.logger.WithError(err).Warn("sign-in callback rejected")
		http.Redirect(w, r, "/login?error=signin_failed", http.StatusSeeOther)
		return
	}

	profile, err := h.resolver.Resolve(r.Context(), claims.Subject)
	if err == profiles.ErrNotFound {
		http.Redirect(w, r, "/login?error=not_authorized", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to resolve profile at sign-in")
		httputil.WriteInternalError(w, err)
		return
	}

	sess, err := h.store.Create(r.Context(), claims.Subject, claims.Email)
	if err != nil {
		h.logger.WithError(err).Error("failed to create session")
		httputil.WriteInternalError(w, err)
		return
	}
	if h.watcher != nil {
		h.watcher.Watch(sess.Token)
	}
	SetCookie(w, h.cookie, sess.Token)

	h.recorder.Record(r.Context(), &audit.Entry{
		ActorID:    profile.ID,
		ActorEmail: profile.Email,
		Action:     audit.ActionSignIn,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /auth/logout. Idempotent: signing out twice, or
// with no session at all, still lands on the sign-in page. The token
// comes from the guard middleware when the route sits behind it, the
// request otherwise.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := contextkeys.GetSessionToken(r.Context())
	if token == "" {
		token = TokenFromRequest(r, h.cookie.Name)
	}
	if token != "" {
		sess, err := h.store.Get(r.Context(), token)
		if err == nil {
			h.recorder.Record(r.Context(), &audit.Entry{
				ActorID:    sess.IdentityID,
				ActorEmail: sess.Email,
				Action:     audit.ActionSignOut,
			})
		}
		if err := h.store.Delete(r.Context(), token); err != nil {
			h.logger.WithError(err).Error("failed to delete session at sign-out")
		}
		if h.watcher != nil {
			h.watcher.Forget(token)
		}
	}
	ClearCookie(w, h.cookie)

	if httputil.WantsHTML(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	httputil.WriteNoContent(w)
}

type resetRequest struct {
	Email string `json:"email"`
}

// Reset handles POST /auth/reset. The answer is 202 whether or not the
// email belongs to an account, so the endpoint cannot be used to probe
// which addresses exist.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}

	if err := h.recovery.SendRecoveryEmail(r.Context(), req.Email); err != nil {
		h.logger.WithError(err).WithField("email", req.Email).
			Warn("failed to send recovery email")
	}

	// Only known accounts land in the trail; the response is identical
	// either way so the endpoint still reveals nothing.
	if profile, err := h.resolver.ResolveByEmail(r.Context(), req.Email); err == nil {
		h.recorder.Record(r.Context(), &audit.Entry{
			ActorID:    profile.ID,
			ActorEmail: profile.Email,
			Action:     audit.ActionPasswordReset,
		})
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

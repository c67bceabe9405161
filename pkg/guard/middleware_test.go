package guard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
	"github.com/harborlight/beacon/pkg/session"
)

type middlewareFixture struct {
	mw       *Middleware
	sessions *session.Store
	mock     sqlmock.Sqlmock
	mr       *miniredis.Miniredis
}

func setupMiddleware(t *testing.T) *middlewareFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	sessions := session.NewStore(client, 30*time.Minute, 12*time.Hour)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	resolver := profiles.NewResolver(profiles.NewStore(db))

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mw := NewMiddleware(sessions, resolver, nil,
		session.CookieConfig{Name: "beacon_session"}, nil, logger)

	return &middlewareFixture{mw: mw, sessions: sessions, mock: mock, mr: mr}
}

func (f *middlewareFixture) expectProfile(id, role string, region interface{}) {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "full_name", "email", "role", "region",
		"mobile", "district", "gender", "dob", "created_at", "updated_at",
	}).AddRow(id, "Asha Rahman", "asha@example.org", role, region, "", "", "", nil, now, now)
	f.mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id").WithArgs(id).WillReturnRows(rows)
}

func (f *middlewareFixture) expectNoProfile(id string) {
	f.mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "full_name", "email", "role", "region",
			"mobile", "district", "gender", "dob", "created_at", "updated_at",
		}))
}

func okHandler(t *testing.T, sawAuth *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := FromContext(r.Context())
		require.True(t, ok)
		require.NotNil(t, ac.Profile)
		*sawAuth = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateNoToken(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	w := httptest.NewRecorder()
	f.mw.Authenticate(okHandler(t, &saw)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, saw)
}

func TestAuthenticateBrowserRedirectsToLogin(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	f.mw.Authenticate(okHandler(t, &saw)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
	assert.False(t, saw)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	sess, err := f.sessions.Create(context.Background(), "id-1", "a@example.org")
	require.NoError(t, err)
	f.mr.FastForward(31 * time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(&http.Cookie{Name: "beacon_session", Value: sess.Token})
	w := httptest.NewRecorder()
	f.mw.Authenticate(okHandler(t, &saw)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, saw)

	// Stale cookie cleared on the way out.
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Empty(t, cookies[0].Value)
}

func TestAuthenticateMissingProfileIsUnauthenticated(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	sess, err := f.sessions.Create(context.Background(), "orphan", "o@example.org")
	require.NoError(t, err)
	f.expectNoProfile("orphan")

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(&http.Cookie{Name: "beacon_session", Value: sess.Token})
	w := httptest.NewRecorder()
	f.mw.Authenticate(okHandler(t, &saw)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, saw)
}

func TestAuthenticateSuccessAttachesAuthContext(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	sess, err := f.sessions.Create(context.Background(), "id-1", "asha@example.org")
	require.NoError(t, err)
	f.expectProfile("id-1", "coordinator", "dhaka")

	r := httptest.NewRequest(http.MethodGet, "/admin/submissions", nil)
	r.AddCookie(&http.Cookie{Name: "beacon_session", Value: sess.Token})
	w := httptest.NewRecorder()
	f.mw.Authenticate(okHandler(t, &saw)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, saw)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRequireRoleForbidden(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	sess, err := f.sessions.Create(context.Background(), "id-1", "asha@example.org")
	require.NoError(t, err)
	f.expectProfile("id-1", "coordinator", "dhaka")

	handler := f.mw.Authenticate(
		f.mw.RequireRole(auth.RoleSuperAdmin)(okHandler(t, &saw)))

	t.Run("json request gets 403", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		r.AddCookie(&http.Cookie{Name: "beacon_session", Value: sess.Token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, saw)
	})

	t.Run("browser request lands on own page with session intact", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		r.AddCookie(&http.Cookie{Name: "beacon_session", Value: sess.Token})
		r.Header.Set("Accept", "text/html")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))

		_, err := f.sessions.Get(context.Background(), sess.Token)
		assert.NoError(t, err)
	})
}

func TestRequireRoleAdmitted(t *testing.T) {
	f := setupMiddleware(t)
	var saw bool

	sess, err := f.sessions.Create(context.Background(), "id-2", "root@example.org")
	require.NoError(t, err)
	f.expectProfile("id-2", "super_admin", nil)

	handler := f.mw.Authenticate(
		f.mw.RequireRole(auth.RoleSuperAdmin)(okHandler(t, &saw)))

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(&http.Cookie{Name: "beacon_session", Value: sess.Token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, saw)
}

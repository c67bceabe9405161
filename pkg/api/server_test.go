package api

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/guard"
	"github.com/harborlight/beacon/pkg/identity"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
	"github.com/harborlight/beacon/pkg/session"
	"github.com/harborlight/beacon/pkg/submissions"
	"github.com/harborlight/beacon/pkg/users"
)

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *audit.Entry) {}

type serverFixture struct {
	server   *Server
	sessions *session.Store
	mock     sqlmock.Sqlmock
}

func profileCols() []string {
	return []string{"id", "full_name", "email", "role", "region",
		"mobile", "district", "gender", "dob", "created_at", "updated_at"}
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	sessions := session.NewStore(client, 30*time.Minute, 12*time.Hour)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	profileStore := profiles.NewStore(db)
	resolver := profiles.NewResolver(profileStore)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	cookie := session.CookieConfig{Name: "beacon_session"}

	guardMW := guard.NewMiddleware(sessions, resolver, nil, cookie, nil, logger)
	recorder := nopRecorder{}

	identities := identity.NewClient("http://auth.invalid", "service-key")
	userService := users.NewService(identities, profileStore, resolver, recorder, logger)

	authFlow := session.NewHandler(nil, sessions, resolver, nil, recorder, nil, cookie, logger)

	server := NewServer(Deps{
		Guard:       guardMW,
		AuthFlow:    authFlow,
		Users:       users.NewHandler(userService, logger),
		Submissions: submissions.NewHandler(submissions.NewStore(db), recorder, logger),
		Audit:       nil,
		Logger:      logger,
	})
	// Audit handler needs its own table setup; routes under test here
	// do not touch it.
	return &serverFixture{server: server, sessions: sessions, mock: mock}
}

func (f *serverFixture) signIn(t *testing.T, id, role string, region interface{}) *http.Cookie {
	t.Helper()

	sess, err := f.sessions.Create(context.Background(), id, "user@example.org")
	require.NoError(t, err)

	now := time.Now()
	f.mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id").WithArgs(id).
		WillReturnRows(sqlmock.NewRows(profileCols()).
			AddRow(id, "Test User", "user@example.org", role, region, "", "", "", nil, now, now))

	return &http.Cookie{Name: "beacon_session", Value: sess.Token}
}

func TestPublicIntakeNeedsNoAuth(t *testing.T) {
	f := setupServer(t)
	now := time.Now()
	f.mock.ExpectQuery("INSERT INTO submissions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	body, _ := json.Marshal(map[string]string{
		"type": "victim_report", "name": "Asha Rahman", "region": "East",
	})
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	f := setupServer(t)

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/submissions", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserManagementIsTopScopeOnly(t *testing.T) {
	f := setupServer(t)
	cookie := f.signIn(t, "coord-1", "coordinator", "East")

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSuperAdminListsUsers(t *testing.T) {
	f := setupServer(t)
	cookie := f.signIn(t, "root-1", "super_admin", nil)

	f.mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE 1=1 ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(profileCols()))
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWrongVerbOnCreateUser(t *testing.T) {
	f := setupServer(t)

	r := httptest.NewRequest(http.MethodPut, "/admin/users", nil)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	f := setupServer(t)

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

package submissions

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
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/contextkeys"
	"github.com/harborlight/beacon/pkg/guard"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
)

type fakeRecorder struct {
	entries []*audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, entry *audit.Entry) {
	f.entries = append(f.entries, entry)
}

func setupHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, *fakeRecorder) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	recorder := &fakeRecorder{}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewHandler(NewStore(db), recorder, logger), mock, recorder
}

func withCaller(r *http.Request, role auth.Role, region string) *http.Request {
	p := &profiles.Profile{
		ID:    "11111111-2222-3333-4444-555555555555",
		Email: "admin@example.org",
		Role:  role,
	}
	if region != "" {
		p.Region = &region
	}
	ctx := contextkeys.WithAuth(r.Context(), &guard.AuthContext{Profile: p})
	return r.WithContext(ctx)
}

func TestIntake(t *testing.T) {
	h, mock, _ := setupHandler(t)
	now := time.Now()

	t.Run("accepts a victim report", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO submissions").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

		body, _ := json.Marshal(map[string]string{
			"type":   "victim_report",
			"name":   "Asha Rahman",
			"region": "East",
		})
		r := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.Intake(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(7), resp["id"])
	})

	t.Run("rejects missing region", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"type": "victim_report", "name": "X"})
		r := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.Intake(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsesCallerScope(t *testing.T) {
	h, mock, _ := setupHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE 1=1 AND region = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("East", 50, 0).
		WillReturnRows(submissionRows(t))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM submissions WHERE 1=1 AND region = \$1`).
		WithArgs("East").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	r := withCaller(httptest.NewRequest(http.MethodGet, "/admin/submissions", nil),
		auth.RoleCoordinator, "East")
	w := httptest.NewRecorder()
	h.List(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	now := time.Now()

	newRequest := func(id, body string) *http.Request {
		r := httptest.NewRequest(http.MethodPatch, "/admin/submissions/"+id+"/status",
			bytes.NewReader([]byte(body)))
		r = mux.SetURLVars(r, map[string]string{"id": id})
		return withCaller(r, auth.RoleRegionalAdmin, "East")
	}

	t.Run("resolves a victim report and audits it", func(t *testing.T) {
		h, mock, recorder := setupHandler(t)
		rows := submissionRows(t).
			AddRow(int64(1), "victim_report", "resolved", "Asha Rahman", "", "", "East", "", "", now, now)
		mock.ExpectQuery("UPDATE submissions").WillReturnRows(rows)

		w := httptest.NewRecorder()
		h.UpdateStatus(w, newRequest("1", `{"status":"resolved"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, recorder.entries, 1)
		entry := recorder.entries[0]
		assert.Equal(t, audit.ActionSubmissionStatusUpdate, entry.Action)
		assert.Equal(t, "11111111-2222-3333-4444-555555555555", entry.ActorID)
		assert.Equal(t, "resolved", entry.Metadata["status"])
		assert.Equal(t, "applied", entry.Metadata["outcome"])
	})

	t.Run("missing status is a validation error", func(t *testing.T) {
		h, _, recorder := setupHandler(t)
		w := httptest.NewRecorder()
		h.UpdateStatus(w, newRequest("1", `{}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, recorder.entries)
	})

	t.Run("unrecognized status rejected", func(t *testing.T) {
		h, _, _ := setupHandler(t)
		w := httptest.NewRecorder()
		h.UpdateStatus(w, newRequest("1", `{"status":"archived"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("volunteer application rejected and the attempt audited", func(t *testing.T) {
		h, mock, recorder := setupHandler(t)
		mock.ExpectQuery("UPDATE submissions").WillReturnRows(submissionRows(t))
		mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE id`).
			WillReturnRows(submissionRows(t).
				AddRow(int64(2), "volunteer_application", nil, "Rafiq Islam", "", "", "West", "", "", now, now))

		w := httptest.NewRecorder()
		h.UpdateStatus(w, newRequest("2", `{"status":"resolved"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, recorder.entries, 1)
		assert.Equal(t, "rejected_not_status_bearing", recorder.entries[0].Metadata["outcome"])
	})

	t.Run("unknown submission is 404", func(t *testing.T) {
		h, mock, _ := setupHandler(t)
		mock.ExpectQuery("UPDATE submissions").WillReturnRows(submissionRows(t))
		mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE id`).
			WillReturnRows(submissionRows(t))

		w := httptest.NewRecorder()
		h.UpdateStatus(w, newRequest("99", `{"status":"new"}`))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

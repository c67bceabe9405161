package audit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/beacon/pkg/observability"
)

func setupRecorder(t *testing.T) (*DBRecorder, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	recorder, err := NewDBRecorder(db, logger, nil)
	require.NoError(t, err)
	return recorder, mock
}

func TestRecord(t *testing.T) {
	recorder, mock := setupRecorder(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO audit_log").
		WithArgs("11111111-2222-3333-4444-555555555555", "root@example.org", "user.create", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))

	entry := &Entry{
		ActorID:    "11111111-2222-3333-4444-555555555555",
		ActorEmail: "root@example.org",
		Action:     ActionUserCreate,
		Metadata:   map[string]interface{}{"target_email": "new@example.org"},
	}
	recorder.Record(context.Background(), entry)

	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, now, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureDoesNotPanic(t *testing.T) {
	recorder, mock := setupRecorder(t)

	mock.ExpectQuery("INSERT INTO audit_log").
		WillReturnError(assert.AnError)

	// A failed write is swallowed; the caller's mutation proceeds.
	recorder.Record(context.Background(), &Entry{
		ActorID: "11111111-2222-3333-4444-555555555555",
		Action:  ActionUserDelete,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	recorder, mock := setupRecorder(t)
	now := time.Now()

	t.Run("filtered by actor and action", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_email", "action", "metadata", "created_at"}).
			AddRow(int64(2), "aaaa-bbbb", "root@example.org", "user.update",
				[]byte(`{"target_id":"cccc"}`), now)
		mock.ExpectQuery(`SELECT (.+) FROM audit_log WHERE 1=1 AND actor_id = \$1 AND action = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
			WithArgs("aaaa-bbbb", "user.update", 50, 0).
			WillReturnRows(rows)

		entries, err := recorder.List(context.Background(),
			Filter{ActorID: "aaaa-bbbb", Action: ActionUserUpdate}, 50, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ActionUserUpdate, entries[0].Action)
		assert.Equal(t, "cccc", entries[0].Metadata["target_id"])
	})

	t.Run("time window", func(t *testing.T) {
		since := now.Add(-24 * time.Hour)
		mock.ExpectQuery(`SELECT (.+) FROM audit_log WHERE 1=1 AND created_at >= \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
			WithArgs(since, 10, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "actor_email", "action", "metadata", "created_at"}))

		entries, err := recorder.List(context.Background(), Filter{Since: since}, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeBefore(t *testing.T) {
	recorder, mock := setupRecorder(t)
	cutoff := time.Now().AddDate(0, 0, -90)

	mock.ExpectExec("DELETE FROM audit_log WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := recorder.PurgeBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

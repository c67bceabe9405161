package submissions

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/scope"
)

func strPtr(s string) *string { return &s }

func submissionRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "type", "status", "name", "email", "phone",
		"region", "district", "description", "created_at", "updated_at",
	})
}

func TestStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("victim report opens as new", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO submissions").
			WithArgs("victim_report", "new", "Asha Rahman", "", "01700000000", "east", "", "need shelter").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

		sub := &Submission{
			Type:        TypeVictimReport,
			Name:        "Asha Rahman",
			Phone:       "01700000000",
			Region:      "east",
			Description: "need shelter",
		}
		require.NoError(t, store.Create(context.Background(), sub))
		assert.Equal(t, StatusNew, sub.Status)
		assert.Equal(t, int64(1), sub.ID)
	})

	t.Run("volunteer application carries no status", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO submissions").
			WithArgs("volunteer_application", nil, "Rafiq Islam", "rafiq@example.org", "", "west", "", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(2), now, now))

		sub := &Submission{
			Type:   TypeVolunteerApplication,
			Name:   "Rafiq Islam",
			Email:  "rafiq@example.org",
			Region: "west",
		}
		require.NoError(t, store.Create(context.Background(), sub))
		assert.Empty(t, sub.Status)
	})

	t.Run("unrecognized type rejected", func(t *testing.T) {
		sub := &Submission{Type: Type("petition"), Name: "X", Region: "east"}
		assert.Error(t, store.Create(context.Background(), sub))
	})

	t.Run("missing name rejected", func(t *testing.T) {
		sub := &Submission{Type: TypeVictimReport, Region: "east"}
		assert.Error(t, store.Create(context.Background(), sub))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListScoping(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("region pinned even with matching search elsewhere", func(t *testing.T) {
		// The search term would match a West record, but the region
		// predicate keeps the query inside East.
		mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE 1=1 AND region = \$1 AND \(name ILIKE \$2 OR email ILIKE \$2 OR region ILIKE \$2\) ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
			WithArgs("East", "%rahman%", 50, 0).
			WillReturnRows(submissionRows(t))

		f := scope.ForRole(auth.RoleCoordinator, strPtr("East")).WithSearch("rahman")
		list, err := store.List(context.Background(), f, "", 50, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("top scope lists across regions with type filter", func(t *testing.T) {
		rows := submissionRows(t).
			AddRow(int64(1), "victim_report", "new", "Asha Rahman", "", "", "East", "", "", now, now).
			AddRow(int64(2), "victim_report", "resolved", "Shimul Das", "", "", "West", "", "", now, now)
		mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE 1=1 AND type = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
			WithArgs("victim_report", 50, 0).
			WillReturnRows(rows)

		list, err := store.List(context.Background(), scope.Unrestricted(), TypeVictimReport, 50, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "West", list[1].Region)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCountScoping(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM submissions WHERE 1=1 AND region = \$1 AND type = \$2`).
		WithArgs("East", "victim_report").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	f := scope.ForRole(auth.RoleRegionalAdmin, strPtr("East"))
	n, err := store.Count(context.Background(), f, TypeVictimReport)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("victim report updated", func(t *testing.T) {
		rows := submissionRows(t).
			AddRow(int64(1), "victim_report", "resolved", "Asha Rahman", "", "", "East", "", "", now, now)
		mock.ExpectQuery(`UPDATE submissions`).
			WithArgs(int64(1), "resolved", "victim_report").
			WillReturnRows(rows)

		sub, err := store.UpdateStatus(context.Background(), 1, StatusResolved)
		require.NoError(t, err)
		assert.Equal(t, StatusResolved, sub.Status)
	})

	t.Run("volunteer application rejected for any status", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE submissions SET status`).
			WithArgs(int64(2), "resolved", "victim_report").
			WillReturnRows(submissionRows(t))
		mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE id = \$1`).
			WithArgs(int64(2)).
			WillReturnRows(submissionRows(t).
				AddRow(int64(2), "volunteer_application", nil, "Rafiq Islam", "", "", "West", "", "", now, now))

		_, err := store.UpdateStatus(context.Background(), 2, StatusResolved)
		assert.ErrorIs(t, err, ErrNotStatusBearing)
	})

	t.Run("missing submission", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE submissions SET status`).
			WithArgs(int64(99), "new", "victim_report").
			WillReturnRows(submissionRows(t))
		mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnRows(submissionRows(t))

		_, err := store.UpdateStatus(context.Background(), 99, StatusNew)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryListForTechniciansBetween(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "job_id", "job_title", "location", "assigned_technicians", "start_time", "hours", "confirmed", "created_at", "updated_at"}).
		AddRow("s1", "j1", "Furnace service", "12 Main St", pq.StringArray{"t1"}, "2026-06-01T08:00:00Z", 2.5, true, time.Now(), time.Now()).
		AddRow("s2", nil, "Legacy visit", "", pq.StringArray{"t1", "t2"}, "6/2/2026, 9:00:00 AM", 1.0, false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, job_id, job_title, location, assigned_technicians, start_time, hours, confirmed, created_at, updated_at FROM schedule_entries").
		WithArgs(from, to, pq.Array([]string{"t1", "t2"})).
		WillReturnRows(rows)

	entries, err := repo.ListForTechniciansBetween(context.Background(), []string{"t1", "t2"}, from, to)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "s1", entries[0].ID)
	assert.Nil(t, entries[1].JobID)
	assert.Equal(t, "6/2/2026, 9:00:00 AM", entries[1].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListForTechniciansBetweenEmptyRoster(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	entries, err := repo.ListForTechniciansBetween(context.Background(), nil, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReschedule(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	start := time.Date(2026, 6, 3, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE schedule_entries").
		WithArgs("s1", "2026-06-03T08:00:00Z", start.Truncate(24*time.Hour), pq.Array([]string{"t1"})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reschedule(context.Background(), "s1", start, []string{"t1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryRescheduleMissingEntry(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("UPDATE schedule_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reschedule(context.Background(), "missing", time.Now().UTC(), []string{"t1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateEntry(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Furnace service", "12 Main St", sqlmock.AnyArg(), "2026-06-03T08:00:00Z", sqlmock.AnyArg(), 2.5, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	jobID := "j1"
	entry := &models.ScheduleEntry{
		JobID:               &jobID,
		JobTitle:            "Furnace service",
		Location:            "12 Main St",
		AssignedTechnicians: []string{"t1"},
		StartTime:           "2026-06-03T08:00:00Z",
		Hours:               2.5,
	}
	id, err := repo.CreateEntry(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, entry.ID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateEntryRejectsBadStart(t *testing.T) {
	db, _, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	_, err := repo.CreateEntry(context.Background(), &models.ScheduleEntry{StartTime: "6/3/2026, 9:00:00 AM"})
	assert.Error(t, err)
}

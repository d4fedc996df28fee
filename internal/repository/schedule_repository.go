package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// ScheduleRepository manages persistence for schedule entries. The raw
// start_time string is stored alongside a derived start_date column so range
// queries stay in SQL even for legacy-formatted rows.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = "id, job_id, job_title, location, assigned_technicians, start_time, hours, confirmed, created_at, updated_at"

// FindByID fetches a single schedule entry.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE id = $1", scheduleColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, fmt.Errorf("find schedule entry %s: %w", id, err)
	}
	return &entry, nil
}

// ListForTechniciansBetween returns every entry in [from, to] whose crew
// overlaps the given technicians. Dates are compared on the derived
// start_date column, inclusive on both ends.
func (r *ScheduleRepository) ListForTechniciansBetween(ctx context.Context, technicianIDs []string, from, to time.Time) ([]models.ScheduleEntry, error) {
	if len(technicianIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries
        WHERE start_date BETWEEN $1 AND $2 AND assigned_technicians && $3
        ORDER BY start_date ASC, id ASC`, scheduleColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, from, to, pq.Array(technicianIDs)); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// Reschedule moves an existing entry to a new start and crew.
func (r *ScheduleRepository) Reschedule(ctx context.Context, id string, start time.Time, technicianIDs []string) error {
	query := `UPDATE schedule_entries
        SET start_time = $2, start_date = $3, assigned_technicians = $4, updated_at = NOW()
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, start.UTC().Format(time.RFC3339), start.UTC().Truncate(24*time.Hour), pq.Array(technicianIDs))
	if err != nil {
		return fmt.Errorf("reschedule entry %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reschedule entry %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateEntry inserts a new schedule entry and returns its id. StartTime must
// already hold an RFC 3339 instant.
func (r *ScheduleRepository) CreateEntry(ctx context.Context, entry *models.ScheduleEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	start, err := time.Parse(time.RFC3339, entry.StartTime)
	if err != nil {
		return "", fmt.Errorf("create schedule entry: invalid start time %q: %w", entry.StartTime, err)
	}
	query := `INSERT INTO schedule_entries (id, job_id, job_title, location, assigned_technicians, start_time, start_date, hours, confirmed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.JobID, entry.JobTitle, entry.Location,
		pq.Array([]string(entry.AssignedTechnicians)), entry.StartTime,
		start.UTC().Truncate(24*time.Hour), entry.Hours, entry.Confirmed,
	); err != nil {
		return "", fmt.Errorf("create schedule entry: %w", err)
	}
	return entry.ID, nil
}

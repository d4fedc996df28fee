package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// JobRepository manages persistence for field-service jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs a JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = "id, title, location, estimated_hours, due_date, previous_schedule_id, created_at, updated_at"

// FindByID fetches a single job.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns)
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return &job, nil
}

// FindByIDs fetches the given jobs in arbitrary order. Missing ids are simply
// absent from the result; the caller decides whether that is an error.
func (r *JobRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = ANY($1)", jobColumns)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	return jobs, nil
}

// List returns jobs matching the filter, newest first, with a total count.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.DueBefore != nil {
		where = append(where, fmt.Sprintf("due_date <= $%d", len(args)+1))
		args = append(args, *filter.DueBefore)
	}
	if filter.Unplaced {
		where = append(where, "NOT EXISTS (SELECT 1 FROM schedule_entries se WHERE se.job_id = jobs.id)")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM jobs WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM jobs WHERE %s ORDER BY due_date ASC, id ASC LIMIT %d OFFSET %d",
		jobColumns, whereClause, size, offset)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// TechnicianRepository manages persistence for technicians and their
// availability exceptions.
type TechnicianRepository struct {
	db *sqlx.DB
}

// NewTechnicianRepository constructs a TechnicianRepository.
func NewTechnicianRepository(db *sqlx.DB) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

const technicianColumns = "id, name, active, created_at, updated_at"

// ListActive returns every active technician with exceptions attached.
func (r *TechnicianRepository) ListActive(ctx context.Context) ([]models.Technician, error) {
	query := fmt.Sprintf("SELECT %s FROM technicians WHERE active = TRUE ORDER BY id ASC", technicianColumns)
	var technicians []models.Technician
	if err := r.db.SelectContext(ctx, &technicians, query); err != nil {
		return nil, fmt.Errorf("list active technicians: %w", err)
	}
	if err := r.attachExceptions(ctx, technicians); err != nil {
		return nil, err
	}
	return technicians, nil
}

// FindByIDs returns the requested technicians with exceptions attached.
// Missing ids are absent from the result.
func (r *TechnicianRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Technician, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM technicians WHERE id = ANY($1) ORDER BY id ASC", technicianColumns)
	var technicians []models.Technician
	if err := r.db.SelectContext(ctx, &technicians, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find technicians: %w", err)
	}
	if err := r.attachExceptions(ctx, technicians); err != nil {
		return nil, err
	}
	return technicians, nil
}

func (r *TechnicianRepository) attachExceptions(ctx context.Context, technicians []models.Technician) error {
	if len(technicians) == 0 {
		return nil
	}
	ids := make([]string, len(technicians))
	for i, tech := range technicians {
		ids[i] = tech.ID
	}

	query := `SELECT id, technician_id, recurring, day_of_week, date, full_day, start_time, end_time
        FROM availability_exceptions WHERE technician_id = ANY($1) ORDER BY id ASC`
	var exceptions []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &exceptions, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load availability exceptions: %w", err)
	}

	byTech := make(map[string][]models.AvailabilityException, len(technicians))
	for _, exc := range exceptions {
		byTech[exc.TechnicianID] = append(byTech[exc.TechnicianID], exc)
	}
	for i := range technicians {
		technicians[i].Exceptions = byTech[technicians[i].ID]
	}
	return nil
}

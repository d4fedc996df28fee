package models

import "time"

// Job represents a unit of field work that needs a schedule slot.
// Inputs to the placement advisor are read-only snapshots of this record.
type Job struct {
	ID                 string    `db:"id" json:"id"`
	Title              string    `db:"title" json:"title"`
	Location           string    `db:"location" json:"location"`
	EstimatedHours     float64   `db:"estimated_hours" json:"estimated_hours"`
	DueDate            time.Time `db:"due_date" json:"due_date"`
	PreviousScheduleID *string   `db:"previous_schedule_id" json:"previous_schedule_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// JobFilter captures filtering options for listing jobs.
type JobFilter struct {
	DueBefore *time.Time
	Unplaced  bool
	Page      int
	PageSize  int
}

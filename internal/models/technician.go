package models

import "time"

// Technician represents a field worker who can be assigned jobs.
type Technician struct {
	ID         string                  `db:"id" json:"id"`
	Name       string                  `db:"name" json:"name"`
	Active     bool                    `db:"active" json:"active"`
	Exceptions []AvailabilityException `db:"-" json:"exceptions,omitempty"`
	CreatedAt  time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time               `db:"updated_at" json:"updated_at"`
}

// AvailabilityException blocks out part or all of a technician's day.
// Recurring exceptions match a weekday every week; one-time exceptions match a
// single calendar date. Full-day exceptions have no time range.
type AvailabilityException struct {
	ID           string     `db:"id" json:"id"`
	TechnicianID string     `db:"technician_id" json:"technician_id"`
	Recurring    bool       `db:"recurring" json:"recurring"`
	DayOfWeek    *string    `db:"day_of_week" json:"day_of_week,omitempty"`
	Date         *time.Time `db:"date" json:"date,omitempty"`
	FullDay      bool       `db:"full_day" json:"full_day"`
	StartTime    *string    `db:"start_time" json:"start_time,omitempty"`
	EndTime      *string    `db:"end_time" json:"end_time,omitempty"`
}

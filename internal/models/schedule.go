package models

import (
	"time"

	"github.com/lib/pq"
)

// ScheduleEntry represents already-committed work on a technician's calendar.
// StartTime is kept raw: historic rows carry a locale-formatted string that
// actually encodes a UTC instant, newer rows carry RFC 3339. The advisor's
// calendar utility owns decoding it into a canonical instant.
type ScheduleEntry struct {
	ID                  string         `db:"id" json:"id"`
	JobID               *string        `db:"job_id" json:"job_id,omitempty"`
	JobTitle            string         `db:"job_title" json:"job_title"`
	Location            string         `db:"location" json:"location"`
	AssignedTechnicians pq.StringArray `db:"assigned_technicians" json:"assigned_technicians"`
	StartTime           string         `db:"start_time" json:"start_time"`
	Hours               float64        `db:"hours" json:"hours"`
	Confirmed           bool           `db:"confirmed" json:"confirmed"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// Includes reports whether the technician is part of the entry's crew.
func (e ScheduleEntry) Includes(technicianID string) bool {
	for _, id := range e.AssignedTechnicians {
		if id == technicianID {
			return true
		}
	}
	return false
}

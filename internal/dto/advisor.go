package dto

// AnalyzeDueSoonRequest asks the advisor to rank placements for unscheduled jobs.
type AnalyzeDueSoonRequest struct {
	JobIDs        []string `json:"jobIds" validate:"required,min=1,dive,required"`
	DateFrom      string   `json:"dateFrom" validate:"required"`
	DateTo        string   `json:"dateTo" validate:"required"`
	TechnicianIDs []string `json:"technicianIds" validate:"omitempty,dive,required"`
	CrewSize      int      `json:"crewSize" validate:"omitempty,min=1,max=8"`
	DuePolicy     string   `json:"duePolicy" validate:"omitempty,oneof=hard soft"`
	MaxCandidates int      `json:"maxCandidates" validate:"omitempty,min=1,max=50"`
}

// ListDueSoonJobsRequest selects unplaced jobs approaching their due date.
type ListDueSoonJobsRequest struct {
	DueBefore string `form:"dueBefore" validate:"omitempty"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

// DueSoonJob is one row of the due-soon listing.
type DueSoonJob struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Location       string  `json:"location"`
	EstimatedHours float64 `json:"estimatedHours"`
	DueDate        string  `json:"dueDate"`
	DaysUntilDue   int     `json:"daysUntilDue"`
}

// AnalyzeMoveRequest asks the advisor to rank alternative slots for an existing
// schedule entry. The entry itself is excluded from its own load snapshot.
type AnalyzeMoveRequest struct {
	ScheduleID    string   `json:"scheduleId" validate:"required"`
	DateFrom      string   `json:"dateFrom" validate:"required"`
	DateTo        string   `json:"dateTo" validate:"required"`
	TechnicianIDs []string `json:"technicianIds" validate:"omitempty,dive,required"`
	CrewSize      int      `json:"crewSize" validate:"omitempty,min=1,max=8"`
	DuePolicy     string   `json:"duePolicy" validate:"omitempty,oneof=hard soft"`
	BufferMinutes int      `json:"bufferMinutes" validate:"omitempty,min=0,max=240"`
	MaxCandidates int      `json:"maxCandidates" validate:"omitempty,min=1,max=50"`
}

// ScoreBreakdown surfaces each scoring term so candidates stay auditable.
type ScoreBreakdown struct {
	DuePenaltyPoints float64 `json:"duePenaltyPoints"`
	DuePenaltyDays   int     `json:"duePenaltyDays"`
	LoadPoints       float64 `json:"loadPoints"`
	LoadHours        float64 `json:"loadHours"`
	TravelPoints     float64 `json:"travelPoints"`
}

// CandidateSlot is a scored (date, technician-set) placement proposal.
type CandidateSlot struct {
	Date          string         `json:"date"`
	TechnicianIDs []string       `json:"technicianIds"`
	Score         float64        `json:"score"`
	Breakdown     ScoreBreakdown `json:"scoreBreakdown"`
	Reason        string         `json:"reason"`
}

// PreviousScheduleContext carries display context for a job's prior occurrence.
type PreviousScheduleContext struct {
	ScheduleID    string   `json:"scheduleId"`
	Date          string   `json:"date"`
	TechnicianIDs []string `json:"technicianIds"`
}

// Suggestion packages the ranked candidates for one job.
type Suggestion struct {
	JobID          string                   `json:"jobId"`
	JobTitle       string                   `json:"jobTitle"`
	DueDate        string                   `json:"dueDate"`
	EstimatedHours float64                  `json:"estimatedHours"`
	Previous       *PreviousScheduleContext `json:"previousSchedule,omitempty"`
	Candidates     []CandidateSlot          `json:"candidates"`
	NoViableSlot   bool                     `json:"noViableSlot"`
}

// AnalyzeDueSoonResponse returns one suggestion per requested job, input order.
type AnalyzeDueSoonResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// AnalyzeMoveResponse returns ranked alternatives for the moving entry.
type AnalyzeMoveResponse struct {
	Candidates []CandidateSlot `json:"candidates"`
	DuePolicy  string          `json:"duePolicy"`
	AIUsed     bool            `json:"aiUsed"`
}

// ApplyPlacementRequest commits a chosen candidate. Feasibility is re-checked
// against fresh schedule data before the write; stale candidates are rejected.
type ApplyPlacementRequest struct {
	JobID         string   `json:"jobId" validate:"required"`
	ScheduleID    string   `json:"scheduleId"`
	Date          string   `json:"date" validate:"required"`
	TechnicianIDs []string `json:"technicianIds" validate:"required,min=1,dive,required"`
	StartTime     string   `json:"startTime" validate:"omitempty"`
}

// ApplyPlacementResponse reports the written schedule entry.
type ApplyPlacementResponse struct {
	ScheduleID    string   `json:"scheduleId"`
	Date          string   `json:"date"`
	TechnicianIDs []string `json:"technicianIds"`
}

package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
)

// Scoring constants. The relative orderings they produce are the contract;
// the absolute values are tuning knobs.
const (
	hardOverdueBase    = 30.0
	hardOverduePerDay  = 50.0
	softOverdueCeiling = 60.0
	softOverdueShape   = 3.0
	loadPointsPerHour  = 4.0
	travelPointsPerJob = 5.0
)

// --- Workload aggregation ---

// dayLoad totals a technician's committed work for one date.
type dayLoad struct {
	Hours float64
	Jobs  int
}

// aggregateWorkload sums committed hours and job counts per window date for
// one technician. The date is taken from the entry's start date. Entries with
// unusable hours still count toward the job total; entries whose start cannot
// be decoded are skipped. excludeID removes the entry being moved from its own
// load picture.
func aggregateWorkload(technicianID string, windowKeys []string, entries []models.ScheduleEntry, excludeID string) map[string]dayLoad {
	inWindow := make(map[string]bool, len(windowKeys))
	for _, key := range windowKeys {
		inWindow[key] = true
	}

	loads := make(map[string]dayLoad)
	for _, entry := range entries {
		if excludeID != "" && entry.ID == excludeID {
			continue
		}
		if !entry.Includes(technicianID) {
			continue
		}
		start, ok := parseScheduleStart(entry.StartTime)
		if !ok {
			continue
		}
		key := dateKey(start)
		if !inWindow[key] {
			continue
		}
		load := loads[key]
		load.Jobs++
		load.Hours += sanitizeHours(entry.Hours)
		loads[key] = load
	}
	return loads
}

// sanitizeHours degrades bad numeric data to zero instead of poisoning sums.
func sanitizeHours(hours float64) float64 {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0
	}
	return hours
}

// --- Due-date penalty ---

// duePenalty converts the distance between a candidate date and the due date
// into points. On-or-before due contributes zero under both policies; the
// date tie-break then makes the earliest feasible slot win. Hard mode
// escalates without bound per overdue day; soft mode saturates strictly
// below its ceiling so load and travel stay relevant for very late jobs.
func duePenalty(due, candidate time.Time, policy models.DuePolicy) (points float64, daysUntilDue int) {
	daysUntilDue = daysBetween(candidate, due)
	if daysUntilDue >= 0 {
		return 0, daysUntilDue
	}
	overdue := float64(-daysUntilDue)
	if policy == models.DuePolicySoft {
		return softOverdueCeiling * overdue / (overdue + softOverdueShape), daysUntilDue
	}
	return hardOverdueBase + hardOverduePerDay*overdue, daysUntilDue
}

// --- Feasibility ---

// isFeasible applies the hard placement rules for one technician-date pair.
// Any failure excludes the pair entirely; infeasible pairs are never scored.
func isFeasible(date time.Time, tech models.Technician, policy models.SchedulingPolicy, load dayLoad, jobHours float64) bool {
	if !policy.AllowsWeekday(date.Weekday()) {
		return false
	}
	if policy.MaxJobsPerDay > 0 && load.Jobs >= policy.MaxJobsPerDay {
		return false
	}

	blockedHours := 0.0
	partial := false
	for _, ex := range tech.Exceptions {
		if !exceptionCovers(ex, date) {
			continue
		}
		if ex.FullDay {
			return false
		}
		partial = true
		blockedHours += exceptionHours(ex)
	}
	if partial {
		// Approximate packing: a capacity check, not an interval solve.
		buffer := float64(policy.BufferMinutes) / 60 * float64(load.Jobs)
		remaining := policy.WorkDayHours() - blockedHours - load.Hours - buffer
		if remaining < jobHours {
			return false
		}
	}
	return true
}

func exceptionCovers(ex models.AvailabilityException, date time.Time) bool {
	if ex.Recurring {
		if ex.DayOfWeek == nil {
			return false
		}
		day, ok := models.ParseWeekday(*ex.DayOfWeek)
		return ok && day == date.Weekday()
	}
	if ex.Date == nil {
		return false
	}
	return dateKey(*ex.Date) == dateKey(date)
}

func exceptionHours(ex models.AvailabilityException) float64 {
	if ex.StartTime == nil || ex.EndTime == nil {
		return 0
	}
	start, okStart := models.ClockHours(*ex.StartTime)
	end, okEnd := models.ClockHours(*ex.EndTime)
	if !okStart || !okEnd || end <= start {
		return 0
	}
	return end - start
}

// --- Travel/proximity penalty ---

// travelPenalty approximates the disruption of inserting a job into an
// existing day without drive-time data: a fixed baseline scaled by how many
// jobs the technician already has on that date.
func travelPenalty(jobsOnDay int) float64 {
	if jobsOnDay <= 0 {
		return 0
	}
	return travelPointsPerJob * float64(jobsOnDay)
}

// --- Crew combinations ---

// crewCombinations yields every sorted crew of the requested size in
// lexicographic order, which keeps ranking output deterministic.
func crewCombinations(technicianIDs []string, size int) [][]string {
	if size <= 0 || size > len(technicianIDs) {
		return nil
	}
	ids := make([]string, len(technicianIDs))
	copy(ids, technicianIDs)
	sort.Strings(ids)

	var result [][]string
	combo := make([]string, size)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == size {
			picked := make([]string, size)
			copy(picked, combo)
			result = append(result, picked)
			return
		}
		for i := start; i <= len(ids)-(size-depth); i++ {
			combo[depth] = ids[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return result
}

// --- Candidate ranking ---

// placementInput is the full snapshot one ranking pass operates on. The
// engine is a pure function of this value.
type placementInput struct {
	Job               models.Job
	WindowKeys        []string
	Technicians       []models.Technician
	Policy            models.SchedulingPolicy
	Entries           []models.ScheduleEntry
	ExcludeScheduleID string
	IncludeTravel     bool
	MaxCandidates     int
}

// rankingStats feeds the advisor metrics.
type rankingStats struct {
	Evaluated  int
	Infeasible int
}

// rankPlacements scores every feasible (date, crew) pair in the window and
// returns the best candidates in ascending score order. Ties break by date,
// then by the joined technician ids, so identical inputs always produce
// identical output.
func rankPlacements(in placementInput) ([]dto.CandidateSlot, rankingStats) {
	stats := rankingStats{}

	techByID := make(map[string]models.Technician, len(in.Technicians))
	ids := make([]string, 0, len(in.Technicians))
	for _, tech := range in.Technicians {
		techByID[tech.ID] = tech
		ids = append(ids, tech.ID)
	}

	loads := make(map[string]map[string]dayLoad, len(ids))
	for _, id := range ids {
		loads[id] = aggregateWorkload(id, in.WindowKeys, in.Entries, in.ExcludeScheduleID)
	}

	combos := crewCombinations(ids, in.Policy.CrewSize)
	candidates := make([]dto.CandidateSlot, 0, len(in.WindowKeys))

	for _, key := range in.WindowKeys {
		date, ok := parseDateKey(key)
		if !ok {
			continue
		}
		for _, crew := range combos {
			stats.Evaluated++

			feasibleCrew := true
			totalHours := 0.0
			totalJobs := 0
			for _, memberID := range crew {
				load := loads[memberID][key]
				if !isFeasible(date, techByID[memberID], in.Policy, load, in.Job.EstimatedHours) {
					feasibleCrew = false
					break
				}
				totalHours += load.Hours
				totalJobs += load.Jobs
			}
			if !feasibleCrew {
				stats.Infeasible++
				continue
			}

			crewSize := float64(len(crew))
			loadHours := totalHours / crewSize
			loadPoints := loadPointsPerHour * loadHours

			duePoints, dueDays := duePenalty(in.Job.DueDate, date, in.Policy.DuePolicy)

			travelPoints := 0.0
			if in.IncludeTravel {
				travelTotal := 0.0
				for _, memberID := range crew {
					travelTotal += travelPenalty(loads[memberID][key].Jobs)
				}
				travelPoints = travelTotal / crewSize
			}

			score := duePoints + loadPoints + travelPoints
			candidates = append(candidates, dto.CandidateSlot{
				Date:          key,
				TechnicianIDs: crew,
				Score:         round2(score),
				Breakdown: dto.ScoreBreakdown{
					DuePenaltyPoints: round2(duePoints),
					DuePenaltyDays:   dueDays,
					LoadPoints:       round2(loadPoints),
					LoadHours:        round2(loadHours),
					TravelPoints:     round2(travelPoints),
				},
				Reason: buildReason(dueDays, loadHours, totalJobs, len(crew)),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		if candidates[i].Date != candidates[j].Date {
			return candidates[i].Date < candidates[j].Date
		}
		return strings.Join(candidates[i].TechnicianIDs, ",") < strings.Join(candidates[j].TechnicianIDs, ",")
	})

	limit := in.MaxCandidates
	if limit <= 0 {
		limit = 5
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, stats
}

// buildReason summarises why a slot ranks where it does.
func buildReason(dueDays int, loadHours float64, totalJobs, crewSize int) string {
	parts := make([]string, 0, 3)

	if totalJobs == 0 {
		parts = append(parts, "No conflicts")
	} else {
		parts = append(parts, fmt.Sprintf("%d existing %s that day", totalJobs, pluralize("job", totalJobs)))
	}

	switch {
	case dueDays > 0:
		parts = append(parts, fmt.Sprintf("%d %s before due date", dueDays, pluralize("day", dueDays)))
	case dueDays == 0:
		parts = append(parts, "due that day")
	default:
		parts = append(parts, fmt.Sprintf("%d %s past due", -dueDays, pluralize("day", -dueDays)))
	}

	if crewSize > 1 {
		parts = append(parts, fmt.Sprintf("crew averages %.1fh booked", loadHours))
	} else {
		parts = append(parts, fmt.Sprintf("technician has %.1fh booked", loadHours))
	}

	return strings.Join(parts, ", ")
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

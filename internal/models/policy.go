package models

import (
	"strings"
	"time"
)

// DuePolicy selects the penalty curve applied to overdue placements.
type DuePolicy string

const (
	// DuePolicyHard escalates overdue penalties without bound so the earliest
	// feasible date wins decisively.
	DuePolicyHard DuePolicy = "hard"
	// DuePolicySoft caps overdue penalties so load and travel stay influential.
	DuePolicySoft DuePolicy = "soft"
)

// Valid reports whether the policy names a known mode.
func (p DuePolicy) Valid() bool {
	return p == DuePolicyHard || p == DuePolicySoft
}

// SchedulingPolicy is the tenant configuration the advisor evaluates against.
type SchedulingPolicy struct {
	AllowedDays   []string
	MaxJobsPerDay int
	WorkDayStart  string
	WorkDayEnd    string
	CrewSize      int
	BufferMinutes int
	DuePolicy     DuePolicy
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ParseWeekday resolves an upper/lower-case weekday name.
func ParseWeekday(name string) (time.Weekday, bool) {
	day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(name))]
	return day, ok
}

// AllowsWeekday reports whether the policy permits scheduling on the weekday.
// An empty allowed-days list permits every day.
func (p SchedulingPolicy) AllowsWeekday(day time.Weekday) bool {
	if len(p.AllowedDays) == 0 {
		return true
	}
	for _, name := range p.AllowedDays {
		if parsed, ok := ParseWeekday(name); ok && parsed == day {
			return true
		}
	}
	return false
}

// WorkDayHours returns the length of the working day in hours, falling back
// to a nine-hour day when the bounds are malformed.
func (p SchedulingPolicy) WorkDayHours() float64 {
	start, okStart := parseClock(p.WorkDayStart)
	end, okEnd := parseClock(p.WorkDayEnd)
	if !okStart || !okEnd || end <= start {
		return 9
	}
	return end - start
}

// parseClock converts "HH:MM" into fractional hours since midnight.
func parseClock(raw string) (float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hours, okH := atoiStrict(parts[0])
	minutes, okM := atoiStrict(parts[1])
	if !okH || !okM || hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return float64(hours) + float64(minutes)/60, true
}

func atoiStrict(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	value := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
		value = value*10 + int(r-'0')
	}
	return value, true
}

// ClockHours exposes parseClock for availability-range arithmetic.
func ClockHours(raw string) (float64, bool) {
	return parseClock(raw)
}

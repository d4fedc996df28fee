package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxWindowDays bounds candidate-date enumeration so a malformed request can
// never produce an unbounded loop.
const maxWindowDays = 366

// dateKey renders the canonical YYYY-MM-DD form of a date using its calendar
// components, not a timezone-shifted wall clock.
func dateKey(t time.Time) string {
	year, month, day := t.Date()
	return strings.Join([]string{
		pad(year, 4), pad(int(month), 2), pad(day, 2),
	}, "-")
}

func pad(value, width int) string {
	s := strconv.Itoa(value)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// parseDateKey is the inverse of dateKey. It reports false for malformed input
// (wrong segment count, non-numeric parts, out-of-range components) instead of
// panicking or guessing.
func parseDateKey(key string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, errY := strconv.Atoi(parts[0])
	month, errM := strconv.Atoi(parts[1])
	day, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, false
	}
	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow (Feb 30 -> Mar 2); reject those keys.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// enumerateDateKeys returns the inclusive ascending run of date keys between
// from and to. The result is empty when from is after to and truncated at
// maxWindowDays entries.
func enumerateDateKeys(from, to time.Time) []string {
	if from.After(to) {
		return nil
	}
	keys := make([]string, 0, 8)
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		if len(keys) >= maxWindowDays {
			break
		}
		keys = append(keys, dateKey(cursor))
	}
	return keys
}

// daysBetween returns the whole-day distance to minus from. Both arguments are
// expected to be midnight-normalised (as produced by parseDateKey).
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// legacyStartPattern matches the locale-formatted start strings written by the
// pre-migration scheduler: "M/D/YYYY, h:mm:ss AM/PM". Despite the local-looking
// shape, every component encodes a UTC field.
var legacyStartPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}),?\s+(\d{1,2}):(\d{2}):(\d{2})\s*(AM|PM)$`)

// parseScheduleStart decodes a schedule entry's raw start value into a UTC
// instant. Legacy locale strings are detected first; RFC 3339 and a few common
// timestamp layouts are the fallback. The boolean result is the tag: downstream
// code never re-inspects the raw string.
func parseScheduleStart(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if m := legacyStartPattern.FindStringSubmatch(raw); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		second, _ := strconv.Atoi(m[6])
		if month < 1 || month > 12 || day < 1 || day > 31 || hour < 1 || hour > 12 || minute > 59 || second > 59 {
			return time.Time{}, false
		}
		if m[7] == "PM" && hour != 12 {
			hour += 12
		}
		if m[7] == "AM" && hour == 12 {
			hour = 0
		}
		return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	if t, ok := parseDateKey(raw); ok {
		return t, true
	}
	return time.Time{}, false
}

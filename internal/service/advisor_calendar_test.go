package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateKeyRoundtrip(t *testing.T) {
	cases := []string{"2026-06-01", "2025-12-31", "2024-02-29", "1999-01-05"}
	for _, key := range cases {
		parsed, ok := parseDateKey(key)
		require.True(t, ok, key)
		assert.Equal(t, key, dateKey(parsed))
	}
}

func TestDateKeyUsesCalendarComponents(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// Late evening local time must not roll into the next UTC day.
	late := time.Date(2026, 6, 1, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-06-01", dateKey(late))
}

func TestParseDateKeyRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"2026-06",
		"2026/06/01",
		"2026-13-01",
		"2026-00-10",
		"2026-02-30",
		"2026-06-32",
		"20a6-06-01",
	}
	for _, key := range cases {
		_, ok := parseDateKey(key)
		assert.False(t, ok, key)
	}
}

func TestEnumerateDateKeys(t *testing.T) {
	from, _ := parseDateKey("2026-06-01")
	to, _ := parseDateKey("2026-06-04")
	keys := enumerateDateKeys(from, to)
	assert.Equal(t, []string{"2026-06-01", "2026-06-02", "2026-06-03", "2026-06-04"}, keys)

	assert.Empty(t, enumerateDateKeys(to, from))

	single := enumerateDateKeys(from, from)
	assert.Equal(t, []string{"2026-06-01"}, single)
}

func TestEnumerateDateKeysCapped(t *testing.T) {
	from, _ := parseDateKey("2020-01-01")
	to, _ := parseDateKey("2030-01-01")
	keys := enumerateDateKeys(from, to)
	assert.Len(t, keys, maxWindowDays)
	assert.Equal(t, "2020-01-01", keys[0])
}

func TestDaysBetween(t *testing.T) {
	a, _ := parseDateKey("2026-06-01")
	b, _ := parseDateKey("2026-06-10")
	assert.Equal(t, 9, daysBetween(a, b))
	assert.Equal(t, -9, daysBetween(b, a))
	assert.Equal(t, 0, daysBetween(a, a))
}

func TestParseScheduleStartLegacy(t *testing.T) {
	cases := map[string]string{
		"6/3/2026, 2:30:00 PM":    "2026-06-03T14:30:00Z",
		"6/3/2026, 2:30:00 AM":    "2026-06-03T02:30:00Z",
		"12/31/2025, 12:00:00 AM": "2025-12-31T00:00:00Z",
		"12/31/2025, 12:15:00 PM": "2025-12-31T12:15:00Z",
		"1/9/2026 8:05:30 AM":     "2026-01-09T08:05:30Z",
	}
	for raw, want := range cases {
		got, ok := parseScheduleStart(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got.Format(time.RFC3339), raw)
		assert.Equal(t, time.UTC, got.Location(), raw)
	}
}

func TestParseScheduleStartModernLayouts(t *testing.T) {
	cases := map[string]string{
		"2026-06-03T14:30:00Z":      "2026-06-03T14:30:00Z",
		"2026-06-03T16:30:00+02:00": "2026-06-03T14:30:00Z",
		"2026-06-03T14:30:00":       "2026-06-03T14:30:00Z",
		"2026-06-03 14:30:00":       "2026-06-03T14:30:00Z",
		"2026-06-03":                "2026-06-03T00:00:00Z",
	}
	for raw, want := range cases {
		got, ok := parseScheduleStart(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got.UTC().Format(time.RFC3339), raw)
	}
}

func TestParseScheduleStartRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not a date",
		"13/1/2026, 2:30:00 PM",
		"6/3/2026, 13:30:00 PM",
	}
	for _, raw := range cases {
		_, ok := parseScheduleStart(raw)
		assert.False(t, ok, raw)
	}
}

package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	"github.com/fieldserve/dispatch-api/pkg/config"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type stubJobRepo struct {
	jobs       map[string]models.Job
	lastFilter models.JobFilter
}

func (s *stubJobRepo) FindByID(ctx context.Context, id string) (*models.Job, error) {
	if job, ok := s.jobs[id]; ok {
		return &job, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubJobRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	var out []models.Job
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *stubJobRepo) List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	s.lastFilter = filter
	var out []models.Job
	for _, job := range s.jobs {
		if filter.DueBefore != nil && job.DueDate.After(*filter.DueBefore) {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, len(out), nil
}

type stubTechnicianRepo struct {
	techs []models.Technician
}

func (s *stubTechnicianRepo) ListActive(ctx context.Context) ([]models.Technician, error) {
	return s.techs, nil
}

func (s *stubTechnicianRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Technician, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Technician
	for _, tech := range s.techs {
		if want[tech.ID] {
			out = append(out, tech)
		}
	}
	return out, nil
}

type stubScheduleRepo struct {
	entries []models.ScheduleEntry
}

func (s *stubScheduleRepo) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	for _, entry := range s.entries {
		if entry.ID == id {
			e := entry
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubScheduleRepo) ListForTechniciansBetween(ctx context.Context, technicianIDs []string, from, to time.Time) ([]models.ScheduleEntry, error) {
	return s.entries, nil
}

type stubScheduleWriter struct {
	rescheduledID string
	createdEntry  *models.ScheduleEntry
}

func (s *stubScheduleWriter) Reschedule(ctx context.Context, id string, start time.Time, technicianIDs []string) error {
	s.rescheduledID = id
	return nil
}

func (s *stubScheduleWriter) CreateEntry(ctx context.Context, entry *models.ScheduleEntry) (string, error) {
	entry.ID = "created-1"
	s.createdEntry = entry
	return entry.ID, nil
}

type stubSnapshotCache struct {
	deletedPatterns []string
}

func (s *stubSnapshotCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (s *stubSnapshotCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (s *stubSnapshotCache) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletedPatterns = append(s.deletedPatterns, pattern)
	return nil
}

func advisorTestConfig() config.AdvisorConfig {
	return config.AdvisorConfig{
		AllowedDays:   []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"},
		MaxJobsPerDay: 3,
		WorkDayStart:  "08:00",
		WorkDayEnd:    "17:00",
		CrewSize:      1,
		BufferMinutes: 30,
		DuePolicy:     "hard",
		MaxWindowDays: 366,
		MaxCandidates: 5,
	}
}

func newTestAdvisor(jobs *stubJobRepo, techs *stubTechnicianRepo, schedules *stubScheduleRepo, writer *stubScheduleWriter, cache *stubSnapshotCache) *AdvisorService {
	var cacheIface snapshotCache
	if cache != nil {
		cacheIface = cache
	}
	return NewAdvisorService(jobs, techs, schedules, writer, cacheIface, nil, nil, nil, advisorTestConfig())
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestAnalyzeDueSoonRejectsMissingJobIDs(t *testing.T) {
	svc := newTestAdvisor(&stubJobRepo{}, &stubTechnicianRepo{}, &stubScheduleRepo{}, nil, nil)
	_, err := svc.AnalyzeDueSoon(context.Background(), dto.AnalyzeDueSoonRequest{
		DateFrom: "2026-06-01",
		DateTo:   "2026-06-05",
	})
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
}

func TestAnalyzeDueSoonRejectsBadWindow(t *testing.T) {
	svc := newTestAdvisor(
		&stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 2)}},
		&stubTechnicianRepo{techs: rosterOf("t1")},
		&stubScheduleRepo{},
		nil, nil,
	)

	cases := []struct {
		name string
		from string
		to   string
	}{
		{"malformed from", "garbage", "2026-06-05"},
		{"malformed to", "2026-06-01", "2026-06-32"},
		{"inverted", "2026-06-10", "2026-06-01"},
		{"too long", "2026-01-01", "2028-01-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AnalyzeDueSoon(context.Background(), dto.AnalyzeDueSoonRequest{
				JobIDs:   []string{"j1"},
				DateFrom: tc.from,
				DateTo:   tc.to,
			})
			assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
		})
	}
}

func TestAnalyzeDueSoonUnknownJob(t *testing.T) {
	svc := newTestAdvisor(&stubJobRepo{jobs: map[string]models.Job{}}, &stubTechnicianRepo{techs: rosterOf("t1")}, &stubScheduleRepo{}, nil, nil)
	_, err := svc.AnalyzeDueSoon(context.Background(), dto.AnalyzeDueSoonRequest{
		JobIDs:   []string{"missing"},
		DateFrom: "2026-06-01",
		DateTo:   "2026-06-05",
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestAnalyzeDueSoonPreservesRequestOrder(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{
		"j1": testJob("j1", "2026-06-10", 2),
		"j2": testJob("j2", "2026-06-12", 1),
	}}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{techs: rosterOf("t1", "t2")}, &stubScheduleRepo{}, nil, nil)

	resp, err := svc.AnalyzeDueSoon(context.Background(), dto.AnalyzeDueSoonRequest{
		JobIDs:   []string{"j2", "j1"},
		DateFrom: "2026-06-01",
		DateTo:   "2026-06-05",
	})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 2)
	assert.Equal(t, "j2", resp.Suggestions[0].JobID)
	assert.Equal(t, "j1", resp.Suggestions[1].JobID)

	first := resp.Suggestions[0]
	assert.False(t, first.NoViableSlot)
	require.NotEmpty(t, first.Candidates)
	assert.Equal(t, "2026-06-01", first.Candidates[0].Date)
}

func TestAnalyzeDueSoonFlagsNoViableSlot(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 2)}}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{}, &stubScheduleRepo{}, nil, nil)

	resp, err := svc.AnalyzeDueSoon(context.Background(), dto.AnalyzeDueSoonRequest{
		JobIDs:   []string{"j1"},
		DateFrom: "2026-06-06",
		DateTo:   "2026-06-07",
	})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.True(t, resp.Suggestions[0].NoViableSlot)
	assert.Empty(t, resp.Suggestions[0].Candidates)
}

func TestAnalyzeMoveNotFound(t *testing.T) {
	svc := newTestAdvisor(&stubJobRepo{}, &stubTechnicianRepo{techs: rosterOf("t1")}, &stubScheduleRepo{}, nil, nil)
	_, err := svc.AnalyzeMove(context.Background(), dto.AnalyzeMoveRequest{
		ScheduleID: "missing",
		DateFrom:   "2026-06-01",
		DateTo:     "2026-06-05",
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestAnalyzeMoveExcludesOwnEntryAndAddsTravel(t *testing.T) {
	jobID := "j1"
	moving := models.ScheduleEntry{
		ID:                  "s1",
		JobID:               &jobID,
		JobTitle:            "Job j1",
		AssignedTechnicians: []string{"t1"},
		StartTime:           "2026-06-01T08:00:00Z",
		Hours:               4,
	}
	other := testEntry("s2", []string{"t1"}, "2026-06-01T13:00:00Z", 2)

	jobs := &stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 4)}}
	schedules := &stubScheduleRepo{entries: []models.ScheduleEntry{moving, other}}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{techs: rosterOf("t1")}, schedules, nil, nil)

	resp, err := svc.AnalyzeMove(context.Background(), dto.AnalyzeMoveRequest{
		ScheduleID: "s1",
		DateFrom:   "2026-06-01",
		DateTo:     "2026-06-01",
	})
	require.NoError(t, err)
	assert.False(t, resp.AIUsed)
	assert.Equal(t, "hard", resp.DuePolicy)
	require.Len(t, resp.Candidates, 1)

	got := resp.Candidates[0]
	// The moving entry's own 4h must not count; only the other 2h job does.
	assert.InDelta(t, 2, got.Breakdown.LoadHours, 1e-9)
	assert.InDelta(t, travelPointsPerJob, got.Breakdown.TravelPoints, 1e-9)
}

func TestApplyPlacementConflictOnStaleSlot(t *testing.T) {
	cfg := advisorTestConfig()
	cfg.MaxJobsPerDay = 1
	jobs := &stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 2)}}
	schedules := &stubScheduleRepo{entries: []models.ScheduleEntry{
		testEntry("s1", []string{"t1"}, "2026-06-01T08:00:00Z", 2),
	}}
	svc := NewAdvisorService(jobs, &stubTechnicianRepo{techs: rosterOf("t1")}, schedules, &stubScheduleWriter{}, nil, nil, nil, nil, cfg)

	_, err := svc.ApplyPlacement(context.Background(), dto.ApplyPlacementRequest{
		JobID:         "j1",
		Date:          "2026-06-01",
		TechnicianIDs: []string{"t1"},
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(t, err))
}

func TestApplyPlacementCreatesEntryAndInvalidatesCache(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 2)}}
	writer := &stubScheduleWriter{}
	cache := &stubSnapshotCache{}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{techs: rosterOf("t1")}, &stubScheduleRepo{}, writer, cache)

	resp, err := svc.ApplyPlacement(context.Background(), dto.ApplyPlacementRequest{
		JobID:         "j1",
		Date:          "2026-06-01",
		TechnicianIDs: []string{"t1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", resp.ScheduleID)
	assert.Equal(t, "2026-06-01", resp.Date)

	require.NotNil(t, writer.createdEntry)
	assert.Equal(t, "2026-06-01T08:00:00Z", writer.createdEntry.StartTime)
	assert.Equal(t, []string{"t1"}, []string(writer.createdEntry.AssignedTechnicians))
	assert.Equal(t, []string{"advisor:snapshot:*"}, cache.deletedPatterns)
}

func TestApplyPlacementReschedulesExistingEntry(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 2)}}
	writer := &stubScheduleWriter{}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{techs: rosterOf("t1")}, &stubScheduleRepo{}, writer, nil)

	resp, err := svc.ApplyPlacement(context.Background(), dto.ApplyPlacementRequest{
		JobID:         "j1",
		ScheduleID:    "s1",
		Date:          "2026-06-02",
		TechnicianIDs: []string{"t1"},
		StartTime:     "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.ScheduleID)
	assert.Equal(t, "s1", writer.rescheduledID)
}

func TestApplyPlacementRejectsUnknownTechnician(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{"j1": testJob("j1", "2026-06-10", 2)}}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{techs: rosterOf("t1")}, &stubScheduleRepo{}, &stubScheduleWriter{}, nil)

	_, err := svc.ApplyPlacement(context.Background(), dto.ApplyPlacementRequest{
		JobID:         "j1",
		Date:          "2026-06-01",
		TechnicianIDs: []string{"t1", "ghost"},
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestListDueSoonJobsOrdersByDueDate(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{
		"j1": testJob("j1", "2026-06-10", 2),
		"j2": testJob("j2", "2026-06-03", 1),
		"j3": testJob("j3", "2026-06-03", 4),
	}}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{}, &stubScheduleRepo{}, nil, nil)

	rows, pagination, err := svc.ListDueSoonJobs(context.Background(), dto.ListDueSoonJobsRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"j2", "j3", "j1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	assert.Equal(t, "2026-06-03", rows[0].DueDate)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.True(t, jobs.lastFilter.Unplaced)
}

func TestListDueSoonJobsAppliesDueBeforeFilter(t *testing.T) {
	jobs := &stubJobRepo{jobs: map[string]models.Job{
		"j1": testJob("j1", "2026-06-10", 2),
		"j2": testJob("j2", "2026-06-03", 1),
	}}
	svc := newTestAdvisor(jobs, &stubTechnicianRepo{}, &stubScheduleRepo{}, nil, nil)

	rows, _, err := svc.ListDueSoonJobs(context.Background(), dto.ListDueSoonJobsRequest{DueBefore: "2026-06-05"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "j2", rows[0].ID)
	require.NotNil(t, jobs.lastFilter.DueBefore)
}

func TestListDueSoonJobsRejectsBadDueBefore(t *testing.T) {
	svc := newTestAdvisor(&stubJobRepo{}, &stubTechnicianRepo{}, &stubScheduleRepo{}, nil, nil)
	_, _, err := svc.ListDueSoonJobs(context.Background(), dto.ListDueSoonJobsRequest{DueBefore: "06/05/2026"})
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
}

package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/config"
)

type advisorJobReader interface {
	FindByID(ctx context.Context, id string) (*models.Job, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error)
}

type advisorTechnicianReader interface {
	ListActive(ctx context.Context) ([]models.Technician, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Technician, error)
}

type advisorScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	ListForTechniciansBetween(ctx context.Context, technicianIDs []string, from, to time.Time) ([]models.ScheduleEntry, error)
}

type advisorScheduleWriter interface {
	Reschedule(ctx context.Context, id string, start time.Time, technicianIDs []string) error
	CreateEntry(ctx context.Context, entry *models.ScheduleEntry) (string, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type advisorObserver interface {
	ObserveAnalysis(flow string, evaluated, infeasible, emitted int)
}

// AdvisorService is the Schedule Placement Advisor: it scores and ranks
// candidate (date, crew) placements for due-soon jobs and for moving
// existing schedule entries. Scoring runs over a snapshot fetched once per
// call; the service holds no mutable state across invocations.
type AdvisorService struct {
	jobs        advisorJobReader
	technicians advisorTechnicianReader
	schedules   advisorScheduleReader
	writer      advisorScheduleWriter
	cache       snapshotCache
	metrics     advisorObserver
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.AdvisorConfig
}

// NewAdvisorService wires the advisor's collaborators.
func NewAdvisorService(
	jobs advisorJobReader,
	technicians advisorTechnicianReader,
	schedules advisorScheduleReader,
	writer advisorScheduleWriter,
	cache snapshotCache,
	metrics advisorObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.AdvisorConfig,
) *AdvisorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWindowDays <= 0 || cfg.MaxWindowDays > maxWindowDays {
		cfg.MaxWindowDays = maxWindowDays
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	return &AdvisorService{
		jobs:        jobs,
		technicians: technicians,
		schedules:   schedules,
		writer:      writer,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// AnalyzeDueSoon ranks placements for each requested job inside the window.
// Suggestions come back in request order; a job with no feasible slot gets an
// empty candidate list and the NoViableSlot flag rather than an error.
func (s *AdvisorService) AnalyzeDueSoon(ctx context.Context, req dto.AnalyzeDueSoonRequest) (*dto.AnalyzeDueSoonResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid due-soon analysis payload")
	}
	window, err := s.resolveWindow(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}
	policy := s.resolvePolicy(req.CrewSize, req.DuePolicy, 0)

	jobs, err := s.loadJobsInOrder(ctx, req.JobIDs)
	if err != nil {
		return nil, err
	}
	roster, err := s.loadRoster(ctx, req.TechnicianIDs)
	if err != nil {
		return nil, err
	}
	entries, err := s.loadSnapshot(ctx, roster, window)
	if err != nil {
		return nil, err
	}

	maxCandidates := req.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = s.cfg.MaxCandidates
	}

	suggestions := make([]dto.Suggestion, 0, len(jobs))
	for _, job := range jobs {
		candidates, stats := rankPlacements(placementInput{
			Job:           job,
			WindowKeys:    window.keys,
			Technicians:   roster,
			Policy:        policy,
			Entries:       entries,
			MaxCandidates: maxCandidates,
		})
		s.observe("due_soon", stats, len(candidates))

		suggestion := dto.Suggestion{
			JobID:          job.ID,
			JobTitle:       job.Title,
			DueDate:        dateKey(job.DueDate),
			EstimatedHours: job.EstimatedHours,
			Candidates:     candidates,
			NoViableSlot:   len(candidates) == 0,
		}
		suggestion.Previous = s.previousContext(ctx, job)
		suggestions = append(suggestions, suggestion)
	}

	return &dto.AnalyzeDueSoonResponse{Suggestions: suggestions}, nil
}

// AnalyzeMove ranks alternative slots for an existing schedule entry. The
// entry is excluded from its own workload snapshot and the travel term is
// active for this flow.
func (s *AdvisorService) AnalyzeMove(ctx context.Context, req dto.AnalyzeMoveRequest) (*dto.AnalyzeMoveResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move analysis payload")
	}
	window, err := s.resolveWindow(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}
	policy := s.resolvePolicy(req.CrewSize, req.DuePolicy, req.BufferMinutes)

	entry, err := s.schedules.FindByID(ctx, req.ScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entry")
	}

	job, err := s.jobForEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	roster, err := s.loadRoster(ctx, req.TechnicianIDs)
	if err != nil {
		return nil, err
	}
	entries, err := s.loadSnapshot(ctx, roster, window)
	if err != nil {
		return nil, err
	}

	maxCandidates := req.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = s.cfg.MaxCandidates
	}

	candidates, stats := rankPlacements(placementInput{
		Job:               job,
		WindowKeys:        window.keys,
		Technicians:       roster,
		Policy:            policy,
		Entries:           entries,
		ExcludeScheduleID: entry.ID,
		IncludeTravel:     true,
		MaxCandidates:     maxCandidates,
	})
	s.observe("move", stats, len(candidates))

	return &dto.AnalyzeMoveResponse{
		Candidates: candidates,
		DuePolicy:  string(policy.DuePolicy),
		AIUsed:     false,
	}, nil
}

// ApplyPlacement commits a chosen candidate. The underlying data may have
// changed since the suggestion was generated, so feasibility is re-checked
// against freshly fetched schedules; a stale candidate is rejected with a
// conflict instead of silently overbooking.
func (s *AdvisorService) ApplyPlacement(ctx context.Context, req dto.ApplyPlacementRequest) (*dto.ApplyPlacementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid apply payload")
	}
	date, ok := parseDateKey(req.Date)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date key %q", req.Date))
	}

	job, err := s.jobs.FindByID(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}

	crew, err := s.technicians.FindByIDs(ctx, req.TechnicianIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technicians")
	}
	if len(crew) != len(req.TechnicianIDs) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more technicians not found")
	}

	fresh, err := s.schedules.ListForTechniciansBetween(ctx, req.TechnicianIDs, date, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules for recheck")
	}

	policy := s.resolvePolicy(len(req.TechnicianIDs), "", 0)
	key := dateKey(date)
	for _, member := range crew {
		load := aggregateWorkload(member.ID, []string{key}, fresh, req.ScheduleID)[key]
		if !isFeasible(date, member, policy, load, job.EstimatedHours) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("slot no longer feasible for technician %s on %s", member.ID, key))
		}
	}

	start, err := s.placementStart(date, req.StartTime)
	if err != nil {
		return nil, err
	}

	scheduleID := req.ScheduleID
	if scheduleID != "" {
		if err := s.writer.Reschedule(ctx, scheduleID, start, req.TechnicianIDs); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move schedule entry")
		}
	} else {
		entry := &models.ScheduleEntry{
			JobID:               &job.ID,
			JobTitle:            job.Title,
			Location:            job.Location,
			AssignedTechnicians: req.TechnicianIDs,
			StartTime:           start.Format(time.RFC3339),
			Hours:               job.EstimatedHours,
		}
		created, err := s.writer.CreateEntry(ctx, entry)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule entry")
		}
		scheduleID = created
	}

	s.invalidateSnapshots(ctx)
	s.logger.Sugar().Infow("placement applied", "job_id", job.ID, "schedule_id", scheduleID, "date", key, "technicians", req.TechnicianIDs)

	return &dto.ApplyPlacementResponse{
		ScheduleID:    scheduleID,
		Date:          key,
		TechnicianIDs: req.TechnicianIDs,
	}, nil
}

// ListDueSoonJobs pages through unplaced jobs ordered by due date, the usual
// feed for picking which jobs to analyze next.
func (s *AdvisorService) ListDueSoonJobs(ctx context.Context, req dto.ListDueSoonJobsRequest) ([]dto.DueSoonJob, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	filter := models.JobFilter{Unplaced: true, Page: req.Page, PageSize: req.PageSize}
	if req.DueBefore != "" {
		due, ok := parseDateKey(req.DueBefore)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid dueBefore %q", req.DueBefore))
		}
		filter.DueBefore = &due
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}

	today, _ := parseDateKey(dateKey(time.Now()))
	rows := make([]dto.DueSoonJob, 0, len(jobs))
	for _, job := range jobs {
		due, _ := parseDateKey(dateKey(job.DueDate))
		rows = append(rows, dto.DueSoonJob{
			ID:             job.ID,
			Title:          job.Title,
			Location:       job.Location,
			EstimatedHours: job.EstimatedHours,
			DueDate:        dateKey(job.DueDate),
			DaysUntilDue:   daysBetween(today, due),
		})
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// --- Window & policy resolution ---

type analysisWindow struct {
	from time.Time
	to   time.Time
	keys []string
}

func (s *AdvisorService) resolveWindow(fromKey, toKey string) (analysisWindow, error) {
	from, okFrom := parseDateKey(fromKey)
	if !okFrom {
		return analysisWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid dateFrom %q", fromKey))
	}
	to, okTo := parseDateKey(toKey)
	if !okTo {
		return analysisWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid dateTo %q", toKey))
	}
	if from.After(to) {
		return analysisWindow{}, appErrors.Clone(appErrors.ErrValidation, "dateFrom must not be after dateTo")
	}
	if days := daysBetween(from, to) + 1; days > s.cfg.MaxWindowDays {
		return analysisWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window of %d days exceeds the %d day limit", days, s.cfg.MaxWindowDays))
	}
	return analysisWindow{from: from, to: to, keys: enumerateDateKeys(from, to)}, nil
}

func (s *AdvisorService) resolvePolicy(crewSize int, duePolicy string, bufferMinutes int) models.SchedulingPolicy {
	policy := models.SchedulingPolicy{
		AllowedDays:   s.cfg.AllowedDays,
		MaxJobsPerDay: s.cfg.MaxJobsPerDay,
		WorkDayStart:  s.cfg.WorkDayStart,
		WorkDayEnd:    s.cfg.WorkDayEnd,
		CrewSize:      s.cfg.CrewSize,
		BufferMinutes: s.cfg.BufferMinutes,
		DuePolicy:     models.DuePolicy(s.cfg.DuePolicy),
	}
	if crewSize > 0 {
		policy.CrewSize = crewSize
	}
	if policy.CrewSize <= 0 {
		policy.CrewSize = 1
	}
	if parsed := models.DuePolicy(duePolicy); parsed.Valid() {
		policy.DuePolicy = parsed
	}
	if !policy.DuePolicy.Valid() {
		policy.DuePolicy = models.DuePolicyHard
	}
	if bufferMinutes > 0 {
		policy.BufferMinutes = bufferMinutes
	}
	return policy
}

// --- Collaborator fetches ---

func (s *AdvisorService) loadJobsInOrder(ctx context.Context, ids []string) ([]models.Job, error) {
	jobs, err := s.jobs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load jobs")
	}
	byID := make(map[string]models.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}
	ordered := make([]models.Job, 0, len(ids))
	for _, id := range ids {
		job, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %s not found", id))
		}
		ordered = append(ordered, job)
	}
	return ordered, nil
}

func (s *AdvisorService) loadRoster(ctx context.Context, ids []string) ([]models.Technician, error) {
	var roster []models.Technician
	var err error
	if len(ids) > 0 {
		roster, err = s.technicians.FindByIDs(ctx, ids)
	} else {
		roster, err = s.technicians.ListActive(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technician roster")
	}
	return roster, nil
}

// jobForEntry resolves the job the moving entry belongs to. Entries without a
// job link fall back to a pseudo-job anchored at the entry's current start
// date so the due penalty measures displacement from today's slot.
func (s *AdvisorService) jobForEntry(ctx context.Context, entry *models.ScheduleEntry) (models.Job, error) {
	if entry.JobID != nil && *entry.JobID != "" {
		job, err := s.jobs.FindByID(ctx, *entry.JobID)
		if err == nil {
			return *job, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.Job{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job for schedule entry")
		}
	}
	due := time.Now().UTC()
	if start, ok := parseScheduleStart(entry.StartTime); ok {
		due = start
	}
	dueDay, _ := parseDateKey(dateKey(due))
	return models.Job{
		ID:             entry.ID,
		Title:          entry.JobTitle,
		Location:       entry.Location,
		EstimatedHours: sanitizeHours(entry.Hours),
		DueDate:        dueDay,
	}, nil
}

// --- Snapshot cache ---

// loadSnapshot fetches every schedule entry for the roster in the window,
// consulting the redis snapshot cache first. Cache failures degrade to a
// direct fetch; the cache is never load-bearing.
func (s *AdvisorService) loadSnapshot(ctx context.Context, roster []models.Technician, window analysisWindow) ([]models.ScheduleEntry, error) {
	ids := make([]string, 0, len(roster))
	for _, tech := range roster {
		ids = append(ids, tech.ID)
	}
	sort.Strings(ids)

	key := snapshotKey(ids, window)
	if s.cache != nil {
		var cached []models.ScheduleEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	entries, err := s.schedules.ListForTechniciansBetween(ctx, ids, window.from, window.to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule snapshot")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, s.cfg.SnapshotCacheTTL); err != nil {
			s.logger.Sugar().Warnw("snapshot cache set failed", "key", key, "error", err)
		}
	}
	return entries, nil
}

func snapshotKey(sortedIDs []string, window analysisWindow) string {
	sum := sha1.Sum([]byte(strings.Join(sortedIDs, ",")))
	return fmt.Sprintf("advisor:snapshot:%s:%s:%s", dateKey(window.from), dateKey(window.to), hex.EncodeToString(sum[:8]))
}

func (s *AdvisorService) invalidateSnapshots(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "advisor:snapshot:*"); err != nil {
		s.logger.Sugar().Warnw("snapshot cache invalidation failed", "error", err)
	}
}

// --- Misc ---

func (s *AdvisorService) previousContext(ctx context.Context, job models.Job) *dto.PreviousScheduleContext {
	if job.PreviousScheduleID == nil || *job.PreviousScheduleID == "" {
		return nil
	}
	entry, err := s.schedules.FindByID(ctx, *job.PreviousScheduleID)
	if err != nil {
		// Display context only; a dangling reference must not fail the analysis.
		return nil
	}
	prev := &dto.PreviousScheduleContext{
		ScheduleID:    entry.ID,
		TechnicianIDs: entry.AssignedTechnicians,
	}
	if start, ok := parseScheduleStart(entry.StartTime); ok {
		prev.Date = dateKey(start)
	}
	return prev
}

func (s *AdvisorService) placementStart(date time.Time, clock string) (time.Time, error) {
	if clock == "" {
		clock = s.cfg.WorkDayStart
	}
	hours, ok := models.ClockHours(clock)
	if !ok {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start time %q", clock))
	}
	return date.Add(time.Duration(hours * float64(time.Hour))), nil
}

func (s *AdvisorService) observe(flow string, stats rankingStats, emitted int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAnalysis(flow, stats.Evaluated, stats.Infeasible, emitted)
}

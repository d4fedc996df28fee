package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/export"
	"github.com/fieldserve/dispatch-api/pkg/jobs"
	"github.com/fieldserve/dispatch-api/pkg/storage"
)

type placementAnalyzer interface {
	AnalyzeDueSoon(ctx context.Context, req dto.AnalyzeDueSoonRequest) (*dto.AnalyzeDueSoonResponse, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, subtitles ...string) ([]byte, error)
}

// ExportServiceConfig tunes the export pipeline.
type ExportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	Workers         int
	MaxRetries      int
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService renders placement analyses into downloadable CSV or PDF
// reports. Jobs run on an in-memory worker queue; lifecycle state lives in
// process memory since exports are short-lived artifacts.
type ExportService struct {
	analyzer placementAnalyzer
	storage  exportFileStorage
	signer   *storage.SignedURLSigner
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportServiceConfig

	queue *jobs.Queue

	mu       sync.RWMutex
	records  map[string]*models.ExportJob
	payloads map[string]dto.AnalyzeDueSoonRequest
	tokens   map[string]string
}

// NewExportService constructs the export pipeline.
func NewExportService(analyzer placementAnalyzer, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportServiceConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	s := &ExportService{
		analyzer: analyzer,
		storage:  store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cfg:      cfg,
		records:  make(map[string]*models.ExportJob),
		payloads: make(map[string]dto.AnalyzeDueSoonRequest),
		tokens:   make(map[string]string),
	}
	s.queue = jobs.NewQueue("exports", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start boots the worker pool and the periodic cleanup loop.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.CleanupInterval > 0 {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.cleanupExpired()
				}
			}
		}()
	}
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// CreateJob registers an export and enqueues rendering.
func (s *ExportService) CreateJob(ctx context.Context, req dto.CreateExportRequest) (*dto.ExportJobResponse, error) {
	format := models.ExportFormat(strings.ToLower(req.Format))
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	record := &models.ExportJob{
		ID:        uuid.NewString(),
		Format:    format,
		Status:    models.ExportStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.records[record.ID] = record
	s.payloads[record.ID] = req.Analysis
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: string(format)}); err != nil {
		s.fail(record.ID, "failed to enqueue export")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return &dto.ExportJobResponse{ID: record.ID, Status: record.Status}, nil
}

// GetStatus exposes job progress; finished jobs include a signed download token.
func (s *ExportService) GetStatus(id string) (*dto.ExportStatusResponse, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	token := s.tokens[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	resp := &dto.ExportStatusResponse{
		ID:           record.ID,
		Status:       record.Status,
		Format:       record.Format,
		ErrorMessage: record.ErrorMessage,
	}
	if record.Status == models.ExportStatusFinished {
		resp.DownloadToken = token
	}
	return resp, nil
}

// ResolveDownload validates a token and opens the stored file.
func (s *ExportService) ResolveDownload(token string) (*ExportDownload, error) {
	exportID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	s.mu.RLock()
	record, ok := s.records[exportID]
	issued := s.tokens[exportID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if issued != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if record.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    record.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// --- Worker ---

func (s *ExportService) handle(ctx context.Context, job jobs.Job) error {
	s.mu.Lock()
	record, ok := s.records[job.ID]
	payload, hasPayload := s.payloads[job.ID]
	if ok {
		record.Status = models.ExportStatusProcessing
	}
	s.mu.Unlock()
	if !ok || !hasPayload {
		return fmt.Errorf("export job %s not found", job.ID)
	}

	analysis, err := s.analyzer.AnalyzeDueSoon(ctx, payload)
	if err != nil {
		s.maybeFail(job, err)
		return err
	}

	dataset, title := buildSuggestionDataset(analysis.Suggestions)
	var data []byte
	switch record.Format {
	case models.ExportFormatCSV:
		data, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		subtitle := fmt.Sprintf("Window %s to %s, generated %s", payload.DateFrom, payload.DateTo, time.Now().UTC().Format(time.RFC3339))
		data, err = s.pdf.Render(dataset, title, subtitle)
	default:
		err = fmt.Errorf("unsupported format %s", record.Format)
	}
	if err != nil {
		s.maybeFail(job, err)
		return err
	}

	filename := fmt.Sprintf("placements_%s_%s.%s", time.Now().UTC().Format("20060102_150405"), job.ID[:8], record.Format)
	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		s.maybeFail(job, err)
		return err
	}
	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.maybeFail(job, err)
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	record.Status = models.ExportStatusFinished
	record.FilePath = relPath
	record.FinishedAt = &now
	record.ErrorMessage = nil
	s.tokens[job.ID] = token
	delete(s.payloads, job.ID)
	s.mu.Unlock()
	return nil
}

// maybeFail marks the record failed only once retries are exhausted; earlier
// attempts stay queued so the queue's retry loop can pick them up again.
func (s *ExportService) maybeFail(job jobs.Job, err error) {
	if job.Attempt < s.cfg.MaxRetries {
		s.mu.Lock()
		if record, ok := s.records[job.ID]; ok {
			record.Status = models.ExportStatusQueued
		}
		s.mu.Unlock()
		return
	}
	s.fail(job.ID, err.Error())
}

func (s *ExportService) fail(id, message string) {
	now := time.Now().UTC()
	s.mu.Lock()
	if record, ok := s.records[id]; ok {
		record.Status = models.ExportStatusFailed
		record.ErrorMessage = &message
		record.FinishedAt = &now
	}
	delete(s.payloads, id)
	s.mu.Unlock()
}

func (s *ExportService) cleanupExpired() {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	s.mu.Lock()
	for id, record := range s.records {
		if record.FinishedAt == nil || record.FinishedAt.After(cutoff) {
			continue
		}
		if record.FilePath != "" {
			if err := s.storage.Delete(record.FilePath); err != nil {
				s.logger.Sugar().Warnw("export cleanup delete failed", "export_id", id, "error", err)
			}
		}
		delete(s.records, id)
		delete(s.tokens, id)
		delete(s.payloads, id)
	}
	s.mu.Unlock()
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("export filesystem cleanup failed", "error", err)
	}
}

// --- Dataset ---

func buildSuggestionDataset(suggestions []dto.Suggestion) (export.Dataset, string) {
	headers := []string{"Job ID", "Job Title", "Due Date", "Rank", "Date", "Technicians", "Score", "Reason"}
	rows := make([]map[string]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		if suggestion.NoViableSlot {
			rows = append(rows, map[string]string{
				"Job ID":      suggestion.JobID,
				"Job Title":   suggestion.JobTitle,
				"Due Date":    suggestion.DueDate,
				"Rank":        "",
				"Date":        "",
				"Technicians": "",
				"Score":       "",
				"Reason":      "No viable slot in the requested window",
			})
			continue
		}
		for rank, candidate := range suggestion.Candidates {
			ids := append([]string(nil), candidate.TechnicianIDs...)
			sort.Strings(ids)
			rows = append(rows, map[string]string{
				"Job ID":      suggestion.JobID,
				"Job Title":   suggestion.JobTitle,
				"Due Date":    suggestion.DueDate,
				"Rank":        fmt.Sprintf("%d", rank+1),
				"Date":        candidate.Date,
				"Technicians": strings.Join(ids, ", "),
				"Score":       fmt.Sprintf("%.2f", candidate.Score),
				"Reason":      candidate.Reason,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Placement Suggestions"
}

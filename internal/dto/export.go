package dto

import "github.com/fieldserve/dispatch-api/internal/models"

// CreateExportRequest runs a due-soon analysis and renders the result.
type CreateExportRequest struct {
	Format   string                `json:"format" validate:"required,oneof=csv pdf"`
	Analysis AnalyzeDueSoonRequest `json:"analysis" validate:"required"`
}

// ExportJobResponse acknowledges a queued export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job progress and, once finished, a signed
// download token.
type ExportStatusResponse struct {
	ID            string              `json:"id"`
	Status        models.ExportStatus `json:"status"`
	Format        models.ExportFormat `json:"format"`
	DownloadToken string              `json:"downloadToken,omitempty"`
	ErrorMessage  *string             `json:"errorMessage,omitempty"`
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/response"
)

type advisorService interface {
	ListDueSoonJobs(ctx context.Context, req dto.ListDueSoonJobsRequest) ([]dto.DueSoonJob, *models.Pagination, error)
	AnalyzeDueSoon(ctx context.Context, req dto.AnalyzeDueSoonRequest) (*dto.AnalyzeDueSoonResponse, error)
	AnalyzeMove(ctx context.Context, req dto.AnalyzeMoveRequest) (*dto.AnalyzeMoveResponse, error)
	ApplyPlacement(ctx context.Context, req dto.ApplyPlacementRequest) (*dto.ApplyPlacementResponse, error)
}

// AdvisorHandler exposes the placement advisor endpoints.
type AdvisorHandler struct {
	service advisorService
}

// NewAdvisorHandler constructs handler.
func NewAdvisorHandler(service advisorService) *AdvisorHandler {
	return &AdvisorHandler{service: service}
}

// ListDueSoonJobs godoc
// @Summary List unplaced jobs ordered by due date
// @Tags Advisor
// @Produce json
// @Param dueBefore query string false "Only jobs due on or before this date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (max 200)"
// @Success 200 {object} response.Envelope
// @Router /advisor/jobs/due-soon [get]
func (h *AdvisorHandler) ListDueSoonJobs(c *gin.Context) {
	var req dto.ListDueSoonJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	rows, pagination, err := h.service.ListDueSoonJobs(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// AnalyzeDueSoon godoc
// @Summary Rank placement slots for due-soon jobs
// @Tags Advisor
// @Accept json
// @Produce json
// @Param payload body dto.AnalyzeDueSoonRequest true "Analysis request"
// @Success 200 {object} response.Envelope
// @Router /advisor/due-soon [post]
func (h *AdvisorHandler) AnalyzeDueSoon(c *gin.Context) {
	var req dto.AnalyzeDueSoonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	result, err := h.service.AnalyzeDueSoon(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AnalyzeMove godoc
// @Summary Rank alternative slots for an existing schedule entry
// @Tags Advisor
// @Accept json
// @Produce json
// @Param id path string true "Schedule entry ID"
// @Param payload body dto.AnalyzeMoveRequest true "Analysis request"
// @Success 200 {object} response.Envelope
// @Router /advisor/schedules/{id}/move [post]
func (h *AdvisorHandler) AnalyzeMove(c *gin.Context) {
	var req dto.AnalyzeMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	req.ScheduleID = c.Param("id")
	result, err := h.service.AnalyzeMove(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ApplyPlacement godoc
// @Summary Commit a chosen placement candidate
// @Tags Advisor
// @Accept json
// @Produce json
// @Param payload body dto.ApplyPlacementRequest true "Placement to apply"
// @Success 200 {object} response.Envelope
// @Router /advisor/apply [post]
func (h *AdvisorHandler) ApplyPlacement(c *gin.Context) {
	var req dto.ApplyPlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	result, err := h.service.ApplyPlacement(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

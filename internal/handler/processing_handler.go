package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-intake-api/internal/dto"
	"github.com/noah-isme/course-intake-api/internal/models"
	"github.com/noah-isme/course-intake-api/internal/service"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
	"github.com/noah-isme/course-intake-api/pkg/jobs"
	"github.com/noah-isme/course-intake-api/pkg/response"
)

type processingService interface {
	ProcessPendingIntentions(ctx context.Context, trigger models.ProcessingTrigger) (*models.ProcessingReport, error)
	GetRun(ctx context.Context, id string) (*models.ProcessingRun, error)
	ListRuns(ctx context.Context, filter models.ProcessingRunFilter) ([]models.ProcessingRun, *models.Pagination, error)
	LatestReport(ctx context.Context) (*models.ProcessingReport, error)
}

type processingEnqueuer interface {
	Enqueue(trigger models.ProcessingTrigger) (jobs.Job, error)
}

// ProcessingHandler triggers processing runs and exposes their history.
type ProcessingHandler struct {
	service   processingService
	scheduler processingEnqueuer
}

// NewProcessingHandler constructs the handler.
func NewProcessingHandler(svc *service.IntentionProcessingService, scheduler *service.ProcessingScheduler) *ProcessingHandler {
	h := &ProcessingHandler{service: svc}
	if scheduler != nil {
		h.scheduler = scheduler
	}
	return h
}

// Process godoc
// @Summary Process every pending intention
// @Description Runs synchronously and returns the report. With async=true the run is queued and 202 is returned.
// @Tags Processing
// @Produce json
// @Param async query bool false "Queue the run instead of waiting"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /intentions/process [post]
func (h *ProcessingHandler) Process(c *gin.Context) {
	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		if h.scheduler == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInternal, "processing queue not configured"))
			return
		}
		job, err := h.scheduler.Enqueue(models.ProcessingTriggerAPI)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, dto.ProcessingAccepted{
			JobID:    job.ID,
			Trigger:  string(models.ProcessingTriggerAPI),
			Enqueued: job.Enqueued,
		})
		return
	}

	report, err := h.service.ProcessPendingIntentions(c.Request.Context(), models.ProcessingTriggerAPI)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ListRuns godoc
// @Summary List processing runs
// @Tags Processing
// @Produce json
// @Param status query string false "running, completed or failed"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /processing-runs [get]
func (h *ProcessingHandler) ListRuns(c *gin.Context) {
	query := dto.ProcessingRunQuery{Status: c.Query("status"), Page: queryInt(c, "page"), PageSize: queryInt(c, "pageSize")}
	switch models.ProcessingRunStatus(query.Status) {
	case "", models.ProcessingRunStatusRunning, models.ProcessingRunStatusCompleted, models.ProcessingRunStatusFailed:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid run status"))
		return
	}
	runs, pagination, err := h.service.ListRuns(c.Request.Context(), models.ProcessingRunFilter{
		Status:   models.ProcessingRunStatus(query.Status),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Get a processing run
// @Tags Processing
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /processing-runs/{id} [get]
func (h *ProcessingHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// LatestReport godoc
// @Summary Report of the most recent finished run
// @Tags Processing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /processing-runs/latest/report [get]
func (h *ProcessingHandler) LatestReport(c *gin.Context) {
	report, err := h.service.LatestReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

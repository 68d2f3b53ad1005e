package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-intake-api/internal/dto"
	"github.com/noah-isme/course-intake-api/internal/models"
	"github.com/noah-isme/course-intake-api/internal/service"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
	"github.com/noah-isme/course-intake-api/pkg/response"
)

type timetableService interface {
	List(ctx context.Context, term string) ([]models.TimetableEntry, error)
}

type timetableExporter interface {
	ExportTimetable(ctx context.Context, req dto.TimetableExportRequest) (*service.ExportResult, error)
	Resolve(token string) (*os.File, string, error)
}

// TimetableHandler serves the published timetable and its exports.
type TimetableHandler struct {
	timetable timetableService
	exporter  timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetable *service.TimetableService, exporter *service.ExportService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable, exporter: exporter}
}

// List godoc
// @Summary Published timetable of a term
// @Tags Timetable
// @Produce json
// @Param term query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	entries, err := h.timetable.List(c.Request.Context(), c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"count": len(entries)})
}

// Export godoc
// @Summary Render the timetable as CSV or PDF
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.TimetableExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Router /timetable/export [post]
func (h *TimetableHandler) Export(c *gin.Context) {
	var req dto.TimetableExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.exporter.ExportTimetable(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.TimetableExportResponse{Format: result.Format, URL: result.URL, ExpiresAt: result.ExpiresAt})
}

// Download godoc
// @Summary Download an exported timetable via signed token
// @Tags Timetable
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /export/{token} [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, relPath, err := h.exporter.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	name := filepath.Base(relPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType(name), file, nil)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

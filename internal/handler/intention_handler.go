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
	"github.com/noah-isme/course-intake-api/pkg/response"
)

type intentionService interface {
	Submit(ctx context.Context, req dto.SubmitIntentionRequest) (*models.CourseIntention, error)
	List(ctx context.Context, query dto.IntentionQuery) ([]models.CourseIntention, *models.Pagination, error)
}

// IntentionHandler exposes course intention endpoints.
type IntentionHandler struct {
	service intentionService
}

// NewIntentionHandler constructs the handler.
func NewIntentionHandler(svc *service.IntentionService) *IntentionHandler {
	return &IntentionHandler{service: svc}
}

// Submit godoc
// @Summary Register a course intention
// @Description Students may only submit for themselves.
// @Tags Intentions
// @Accept json
// @Produce json
// @Param payload body dto.SubmitIntentionRequest true "Intention payload"
// @Success 201 {object} response.Envelope
// @Router /intentions [post]
func (h *IntentionHandler) Submit(c *gin.Context) {
	var req dto.SubmitIntentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid intention payload"))
		return
	}
	if studentID, ok := studentScope(c); ok {
		if req.StudentID == "" {
			req.StudentID = studentID
		}
		if req.StudentID != studentID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only submit their own intentions"))
			return
		}
	}
	intention, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, intention)
}

// List godoc
// @Summary List course intentions
// @Tags Intentions
// @Produce json
// @Param status query string false "pending, enrolled or failed"
// @Param studentId query string false "Student ID"
// @Param courseCode query string false "Course code"
// @Param term query string false "Term"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /intentions [get]
func (h *IntentionHandler) List(c *gin.Context) {
	query := dto.IntentionQuery{
		StudentID:  c.Query("studentId"),
		CourseCode: c.Query("courseCode"),
		Term:       c.Query("term"),
		Status:     c.Query("status"),
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "pageSize"),
	}
	if studentID, ok := studentScope(c); ok {
		query.StudentID = studentID
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}

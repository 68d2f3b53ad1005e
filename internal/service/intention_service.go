package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/dto"
	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type intentionRepository interface {
	Create(ctx context.Context, intention *models.CourseIntention) error
	List(ctx context.Context, filter models.IntentionFilter) ([]models.CourseIntention, int, error)
}

type intentionStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type intentionCourseReader interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

// IntentionService accepts and lists course intentions.
type IntentionService struct {
	repo      intentionRepository
	students  intentionStudentReader
	courses   intentionCourseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIntentionService constructs IntentionService.
func NewIntentionService(repo intentionRepository, students intentionStudentReader, courses intentionCourseReader, validate *validator.Validate, logger *zap.Logger) *IntentionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentionService{repo: repo, students: students, courses: courses, validator: validate, logger: logger}
}

// Submit stores a pending intention after checking the student and course exist.
func (s *IntentionService) Submit(ctx context.Context, req dto.SubmitIntentionRequest) (*models.CourseIntention, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseCode = strings.ToUpper(strings.TrimSpace(req.CourseCode))
	req.Term = strings.TrimSpace(req.Term)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intention payload")
	}

	if s.students != nil {
		if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.FromError(err)
		}
	}
	if s.courses != nil {
		if _, err := s.courses.FindByCode(ctx, req.CourseCode); err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.FromError(err)
		}
	}

	intention := &models.CourseIntention{
		StudentID:  req.StudentID,
		CourseCode: req.CourseCode,
		Term:       req.Term,
		Status:     models.IntentionStatusPending,
	}
	if err := s.repo.Create(ctx, intention); err != nil {
		return nil, appErrors.FromError(err)
	}
	s.logger.Info("intention submitted", zap.String("intention_id", intention.ID), zap.String("student_id", intention.StudentID), zap.String("course_code", intention.CourseCode))
	return intention, nil
}

// List returns intentions with pagination metadata.
func (s *IntentionService) List(ctx context.Context, query dto.IntentionQuery) ([]models.CourseIntention, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intention query")
	}
	filter := models.IntentionFilter{
		StudentID:  query.StudentID,
		CourseCode: strings.ToUpper(query.CourseCode),
		Term:       query.Term,
		Status:     models.IntentionStatus(query.Status),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

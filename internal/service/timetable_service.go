package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type timetableReader interface {
	ListTimetable(ctx context.Context, term string) ([]models.TimetableEntry, error)
}

// TimetableService serves the published timetable of a term.
type TimetableService struct {
	reader    timetableReader
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(reader timetableReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{reader: reader, cache: cache, cacheTTL: cacheTTL, validator: validator.New(), logger: logger}
}

// List returns the published sections of term ordered by course and label.
func (s *TimetableService) List(ctx context.Context, term string) ([]models.TimetableEntry, error) {
	term = strings.TrimSpace(term)
	if err := s.validator.Var(term, "required,max=32"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "term is required")
	}

	key := timetableCacheKey(term)
	var cached []models.TimetableEntry
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	entries, err := s.reader.ListTimetable(ctx, term)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if entries == nil {
		entries = []models.TimetableEntry{}
	}
	_ = s.cache.Set(ctx, key, entries, s.cacheTTL)
	return entries, nil
}

func timetableCacheKey(term string) string {
	return fmt.Sprintf("timetable:%s", term)
}

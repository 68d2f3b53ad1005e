package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
	"github.com/noah-isme/course-intake-api/pkg/logger"
)

const (
	latestReportCacheKey  = "processing:report:latest"
	timetableCachePattern = "timetable:*"
)

// ProcessingGateway is every store operation a processing run performs.
type ProcessingGateway interface {
	capacityStore
	scheduleStore
	enrollmentStore
	ListPendingIntentions(ctx context.Context) ([]models.CourseIntention, error)
	FindStudent(ctx context.Context, id string) (*models.Student, error)
	FindInstructorsTeaching(ctx context.Context, courseCodes []string) ([]models.Instructor, error)
	FindRoomsWithCapacity(ctx context.Context, minCapacity int) ([]models.Room, error)
	ListScheduledOfferings(ctx context.Context, terms []string) ([]models.Offering, error)
}

type runLocker interface {
	Acquire(ctx context.Context, ttl time.Duration) (string, error)
	Release(ctx context.Context, token string) error
}

type processingRunStore interface {
	Create(ctx context.Context, run *models.ProcessingRun) error
	Finish(ctx context.Context, id string, status models.ProcessingRunStatus, report types.JSONText) error
	FindByID(ctx context.Context, id string) (*models.ProcessingRun, error)
	Latest(ctx context.Context) (*models.ProcessingRun, error)
	List(ctx context.Context, filter models.ProcessingRunFilter) ([]models.ProcessingRun, int, error)
}

// IntentionProcessingConfig tunes processing runs.
type IntentionProcessingConfig struct {
	SeatsPerSection int
	LockTTL         time.Duration
	ReportCacheTTL  time.Duration
}

// IntentionProcessingService turns the pending intention batch into a
// timetable and enrollments, one serialized run at a time.
type IntentionProcessingService struct {
	gateway ProcessingGateway
	runs    processingRunStore
	lock    runLocker
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     IntentionProcessingConfig
	pool    []models.SlotCombo
}

// NewIntentionProcessingService wires the processing pipeline.
func NewIntentionProcessingService(
	gateway ProcessingGateway,
	runs processingRunStore,
	lock runLocker,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg IntentionProcessingConfig,
) *IntentionProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SeatsPerSection <= 0 {
		cfg.SeatsPerSection = models.DefaultSeatsPerSection
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.ReportCacheTTL <= 0 {
		cfg.ReportCacheTTL = 15 * time.Minute
	}
	return &IntentionProcessingService{
		gateway: gateway,
		runs:    runs,
		lock:    lock,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		pool:    BuildSlotPool(),
	}
}

// ProcessPendingIntentions runs one full processing pass and returns its report.
func (s *IntentionProcessingService) ProcessPendingIntentions(ctx context.Context, trigger models.ProcessingTrigger) (*models.ProcessingReport, error) {
	if s.lock != nil {
		token, err := s.lock.Acquire(ctx, s.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.lock.Release(releaseCtx, token); err != nil {
				s.logger.Warn("failed to release processing lock", zap.Error(err))
			}
		}()
	}
	// A run must not outlive its lease; the lock is never renewed.
	if budget := runBudget(s.cfg.LockTTL); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	started := time.Now()
	pending, err := s.gateway.ListPendingIntentions(ctx)
	if err != nil {
		return nil, asStoreUnavailable(err, "failed to list pending intentions")
	}
	demand := AggregateDemand(pending)
	if demand.Empty() {
		s.logger.Info("no pending intentions to process", zap.String("trigger", string(trigger)))
		if s.metrics != nil {
			s.metrics.ObserveProcessingRun(string(trigger), string(models.ProcessingRunStatusCompleted), time.Since(started), models.ProcessingReport{})
		}
		empty := newReportBuilder().build()
		return &empty, nil
	}

	run := &models.ProcessingRun{Trigger: trigger, Status: models.ProcessingRunStatusRunning, StartedAt: started.UTC()}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, appErrors.FromError(err)
		}
	}
	runLogger := logger.ForRun(s.logger, run.ID, string(trigger))
	runLogger.Info("processing run started")

	report, runErr := s.process(ctx, demand, runLogger)
	report.RunID = run.ID

	status := models.ProcessingRunStatusCompleted
	if runErr != nil {
		status = models.ProcessingRunStatusFailed
	}
	s.finish(run, status, report, runLogger)
	if s.metrics != nil {
		s.metrics.ObserveProcessingRun(string(trigger), string(status), time.Since(started), report)
	}

	if runErr != nil {
		runLogger.Error("processing run aborted", zap.Error(runErr))
		if errors.Is(runErr, context.DeadlineExceeded) {
			return &report, appErrors.Wrap(runErr, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "processing run exceeded its lock lease")
		}
		if errors.Is(runErr, context.Canceled) {
			return &report, appErrors.Wrap(runErr, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "processing run interrupted")
		}
		return &report, runErr
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, latestReportCacheKey, report, s.cfg.ReportCacheTTL); err != nil {
			runLogger.Warn("failed to cache processing report", zap.Error(err))
		}
		if err := s.cache.Invalidate(ctx, timetableCachePattern); err != nil {
			runLogger.Warn("failed to invalidate timetable cache", zap.String("pattern", timetableCachePattern), zap.Error(err))
		}
	}
	runLogger.Info("processing run completed",
		zap.Int("successful_enrollments", report.SuccessfulEnrollments),
		zap.Int("failed_prerequisites", report.FailedPrerequisites),
		zap.Int("failed_scheduling", report.FailedScheduling),
		zap.Int("sections_created", report.SectionsCreated),
	)
	return &report, nil
}

func (s *IntentionProcessingService) process(ctx context.Context, demand Demand, log *zap.Logger) (models.ProcessingReport, error) {
	report := newReportBuilder()
	log.Info("pending intentions aggregated", zap.Int("students", len(demand.ByStudent)), zap.Int("course_terms", len(demand.Groups)))

	phaseStart := time.Now()
	planner := NewCapacityPlanner(s.gateway, s.cfg.SeatsPerSection, log)
	plans := make([]CourseTermPlan, 0, len(demand.Groups))
	for _, group := range demand.Groups {
		if err := ctx.Err(); err != nil {
			return report.build(), err
		}
		plan, err := planner.Plan(ctx, group)
		if err != nil {
			return report.build(), err
		}
		report.sectionsCreated(plan.Created)
		plans = append(plans, plan)
	}

	s.metrics.ObserveProcessingPhase("plan", time.Since(phaseStart))

	phaseStart = time.Now()
	resources, students, err := s.snapshot(ctx, demand, plans)
	if err != nil {
		return report.build(), err
	}

	state := newRunState()
	scheduler := NewConflictScheduler(s.gateway, s.pool, log)
	outcomes, err := scheduler.Schedule(ctx, state, plans, resources, report)
	if err != nil {
		return report.build(), err
	}
	s.metrics.ObserveProcessingPhase("schedule", time.Since(phaseStart))

	phaseStart = time.Now()
	committer := NewEnrollmentCommitter(s.gateway, log)
	if err := committer.Commit(ctx, plans, outcomes, students, report); err != nil {
		return report.build(), err
	}
	s.metrics.ObserveProcessingPhase("commit", time.Since(phaseStart))
	return report.build(), nil
}

// snapshot reads instructors, rooms, published offerings and students once per run.
func (s *IntentionProcessingService) snapshot(ctx context.Context, demand Demand, plans []CourseTermPlan) (SchedulingResources, StudentDirectory, error) {
	students := NewStudentDirectory()
	resources := SchedulingResources{ByStudent: demand.ByStudent}

	instructors, err := s.gateway.FindInstructorsTeaching(ctx, demand.CourseCodes())
	if err != nil {
		return resources, students, asStoreUnavailable(err, "failed to load instructors")
	}
	resources.Instructors = instructors

	minSeats := 0
	for _, plan := range plans {
		if plan.Failure != nil {
			continue
		}
		if seats := plan.SeatsPerSection(); minSeats == 0 || seats < minSeats {
			minSeats = seats
		}
	}
	if minSeats > 0 {
		rooms, err := s.gateway.FindRoomsWithCapacity(ctx, minSeats)
		if err != nil {
			return resources, students, asStoreUnavailable(err, "failed to load rooms")
		}
		resources.Rooms = rooms
	}

	booked, err := s.gateway.ListScheduledOfferings(ctx, demand.Terms())
	if err != nil {
		return resources, students, asStoreUnavailable(err, "failed to load published offerings")
	}
	resources.Booked = booked

	for _, id := range demand.StudentIDs() {
		student, err := s.gateway.FindStudent(ctx, id)
		switch {
		case err == nil:
			students.Add(student)
		case appErrors.IsFatal(err):
			return resources, students, err
		default:
			students.MarkMissing(id, err)
		}
	}
	return resources, students, nil
}

func (s *IntentionProcessingService) finish(run *models.ProcessingRun, status models.ProcessingRunStatus, report models.ProcessingReport, log *zap.Logger) {
	if s.runs == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		log.Error("failed to encode processing report", zap.Error(err))
		payload = []byte(`{}`)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Finish(ctx, run.ID, status, types.JSONText(payload)); err != nil {
		log.Error("failed to record processing run", zap.Error(err))
	}
}

// GetRun returns a processing run by id.
func (s *IntentionProcessingService) GetRun(ctx context.Context, id string) (*models.ProcessingRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "processing run not found")
		}
		return nil, appErrors.FromError(err)
	}
	return run, nil
}

// ListRuns returns processing run history.
func (s *IntentionProcessingService) ListRuns(ctx context.Context, filter models.ProcessingRunFilter) ([]models.ProcessingRun, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}
	return runs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// LatestReport returns the report of the most recent finished run, cache first.
func (s *IntentionProcessingService) LatestReport(ctx context.Context) (*models.ProcessingReport, error) {
	var cached models.ProcessingReport
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, latestReportCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	run, err := s.runs.Latest(ctx)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no processing run has finished yet")
		}
		return nil, appErrors.FromError(err)
	}
	var report models.ProcessingReport
	if err := json.Unmarshal(run.Report, &report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode processing report")
	}
	if report.RunID == "" {
		report.RunID = run.ID
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, latestReportCacheKey, report, s.cfg.ReportCacheTTL)
	}
	return &report, nil
}

// runBudget leaves a tenth of the lease as headroom for recording the run.
func runBudget(lease time.Duration) time.Duration {
	return lease - lease/10
}

func asStoreUnavailable(err error, message string) error {
	if appErrors.IsFatal(err) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}

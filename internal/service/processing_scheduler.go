package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
	"github.com/noah-isme/course-intake-api/pkg/jobs"
)

const processingJobType = "process_intentions"

type intentionProcessor interface {
	ProcessPendingIntentions(ctx context.Context, trigger models.ProcessingTrigger) (*models.ProcessingReport, error)
}

type jobQueue interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(job jobs.Job) error
}

// ProcessingSchedulerConfig controls background runs.
type ProcessingSchedulerConfig struct {
	CronEnabled  bool
	CronSchedule string
	RunTimeout   time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// ProcessingScheduler feeds asynchronous and periodic runs through a
// single-worker queue so only one run executes per process.
type ProcessingScheduler struct {
	processor intentionProcessor
	queue     jobQueue
	cron      *cron.Cron
	logger    *zap.Logger
	cfg       ProcessingSchedulerConfig
	now       func() time.Time

	mu      sync.Mutex
	started bool
}

// NewProcessingScheduler builds the scheduler and its run queue.
func NewProcessingScheduler(processor intentionProcessor, cfg ProcessingSchedulerConfig, logger *zap.Logger) *ProcessingScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.CronSchedule == "" {
		cfg.CronSchedule = "0 2 * * *"
	}
	s := &ProcessingScheduler{
		processor: processor,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue("intention-processing", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Retryable:  retryableRunError,
		Logger:     logger,
	})
	return s
}

// Start launches the run queue and, when enabled, the cron schedule.
func (s *ProcessingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.queue.Start(ctx)

	if s.cfg.CronEnabled {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger.Sugar()})), cron.WithLogger(cronLogger{s.logger.Sugar()}))
		if _, err := c.AddFunc(s.cfg.CronSchedule, func() {
			if _, err := s.Enqueue(models.ProcessingTriggerCron); err != nil {
				s.logger.Warn("scheduled processing run not enqueued", zap.Error(err))
			}
		}); err != nil {
			s.queue.Stop()
			return fmt.Errorf("schedule processing cron %q: %w", s.cfg.CronSchedule, err)
		}
		c.Start()
		s.cron = c
		s.logger.Info("processing cron started", zap.String("schedule", s.cfg.CronSchedule))
	}
	s.started = true
	return nil
}

// Stop halts the cron schedule and drains the queue worker.
func (s *ProcessingScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	s.queue.Stop()
	s.started = false
}

// Enqueue schedules one processing run and returns its job.
func (s *ProcessingScheduler) Enqueue(trigger models.ProcessingTrigger) (jobs.Job, error) {
	job := jobs.Job{
		ID:       uuid.NewString(),
		Type:     processingJobType,
		Payload:  trigger,
		Enqueued: s.now().UTC(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			return job, appErrors.Clone(appErrors.ErrRunInProgress, "processing queue is full")
		}
		return job, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue processing run")
	}
	s.logger.Info("processing run enqueued", zap.String("job_id", job.ID), zap.String("trigger", string(trigger)))
	return job, nil
}

func (s *ProcessingScheduler) handle(ctx context.Context, job jobs.Job) error {
	trigger, ok := job.Payload.(models.ProcessingTrigger)
	if !ok {
		trigger = models.ProcessingTriggerAPI
	}
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	report, err := s.processor.ProcessPendingIntentions(runCtx, trigger)
	if err != nil {
		return err
	}
	s.logger.Info("queued processing run finished",
		zap.String("job_id", job.ID),
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.Processed()),
	)
	return nil
}

// retryableRunError limits retries to store outages.
func retryableRunError(err error) bool {
	if errors.Is(err, appErrors.ErrRunInProgress) {
		return false
	}
	return appErrors.IsFatal(err)
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

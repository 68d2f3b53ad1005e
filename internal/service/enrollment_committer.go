package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type enrollmentStore interface {
	CommitEnrollment(ctx context.Context, commit models.EnrollmentCommit) (bool, error)
	UpdateIntentionStatus(ctx context.Context, id string, outcome models.IntentionOutcome) error
}

// StudentDirectory is the per-run snapshot of students referenced by the batch.
type StudentDirectory struct {
	students map[string]*models.Student
	missing  map[string]error
}

// NewStudentDirectory builds an empty directory.
func NewStudentDirectory() StudentDirectory {
	return StudentDirectory{students: make(map[string]*models.Student), missing: make(map[string]error)}
}

// Add records a loaded student.
func (d StudentDirectory) Add(student *models.Student) {
	d.students[student.ID] = student
}

// MarkMissing records a lookup that did not produce a student.
func (d StudentDirectory) MarkMissing(id string, err error) {
	d.missing[id] = err
}

// Find returns the student or a not found error.
func (d StudentDirectory) Find(id string) (*models.Student, error) {
	if student, ok := d.students[id]; ok {
		return student, nil
	}
	if err, ok := d.missing[id]; ok && err != nil {
		return nil, err
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

type termCombo struct {
	term  string
	combo models.SlotCombo
}

// EnrollmentCommitter seats students into scheduled sections.
type EnrollmentCommitter struct {
	store  enrollmentStore
	logger *zap.Logger
	now    func() time.Time
}

// NewEnrollmentCommitter constructs the committer.
func NewEnrollmentCommitter(store enrollmentStore, logger *zap.Logger) *EnrollmentCommitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentCommitter{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Commit walks every course-term in batch order and moves each intention to a
// terminal status. Store outages and cancellation between course-terms abort.
func (c *EnrollmentCommitter) Commit(ctx context.Context, plans []CourseTermPlan, outcomes map[models.CourseTermKey]ScheduleOutcome, students StudentDirectory, report *reportBuilder) error {
	enrolledTimes := make(map[string][]termCombo)

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := plan.Group.Key

		if plan.Failure != nil {
			for _, intention := range plan.Group.Intentions {
				if err := c.fail(ctx, report, intention, plan.Failure.Kind, plan.Failure.Reason); err != nil {
					return err
				}
			}
			continue
		}

		outcome, ok := outcomes[key]
		if !ok || !outcome.IsScheduled() {
			for _, intention := range plan.Group.Intentions {
				if err := c.fail(ctx, report, intention, FailureScheduling, ReasonUnschedulable); err != nil {
					return err
				}
			}
			continue
		}

		prerequisites := authoritativePrerequisites(plan)
		for _, intention := range plan.Group.Intentions {
			if err := c.commitOne(ctx, report, plan, outcome, prerequisites, intention, students, enrolledTimes); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *EnrollmentCommitter) commitOne(
	ctx context.Context,
	report *reportBuilder,
	plan CourseTermPlan,
	outcome ScheduleOutcome,
	prerequisites []string,
	intention models.CourseIntention,
	students StudentDirectory,
	enrolledTimes map[string][]termCombo,
) error {
	student, err := students.Find(intention.StudentID)
	if err != nil {
		if appErrors.IsFatal(err) {
			return err
		}
		return c.fail(ctx, report, intention, FailureNotFound, ReasonStudentNotFound)
	}

	if missing := student.MissingPrerequisites(prerequisites); len(missing) > 0 {
		c.logger.Debug("missing prerequisites", zap.String("student_id", student.ID), zap.Strings("missing", missing))
		return c.fail(ctx, report, intention, FailurePrerequisites, ReasonMissingPrerequisites)
	}

	for _, taken := range enrolledTimes[student.ID] {
		if taken.term == intention.Term && taken.combo.Overlaps(outcome.Combo) {
			return c.fail(ctx, report, intention, FailureScheduling, ReasonScheduleConflict)
		}
	}

	for i := range plan.Sections {
		section := &plan.Sections[i]
		if section.SeatsAvailable <= 0 {
			continue
		}
		commit := models.EnrollmentCommit{
			IntentionID: intention.ID,
			Enrollment: models.Enrollment{
				ID:         models.EnrollmentID(student.ID, section.ID),
				StudentID:  student.ID,
				SectionID:  section.ID,
				EnrolledAt: c.now(),
			},
		}
		seated, err := c.store.CommitEnrollment(ctx, commit)
		switch {
		case err == nil:
			if seated {
				section.SeatsAvailable--
			}
			student.EnrolledSections = append(student.EnrolledSections, section.ID)
			enrolledTimes[student.ID] = append(enrolledTimes[student.ID], termCombo{term: intention.Term, combo: outcome.Combo})
			report.enrolled(intention, section.ID)
			return nil
		case appErrors.IsFatal(err):
			return err
		case errors.Is(err, appErrors.ErrCapacityExhausted):
			section.SeatsAvailable = 0
			continue
		case errors.Is(err, appErrors.ErrConflict):
			c.logger.Warn("intention already processed", zap.String("intention_id", intention.ID))
			report.detail("Intention %s was already processed", intention.ID)
			return nil
		default:
			c.logger.Error("enrollment commit failed", zap.String("intention_id", intention.ID), zap.String("section_id", section.ID), zap.Error(err))
			return c.fail(ctx, report, intention, FailureScheduling, "enrollment could not be recorded")
		}
	}
	return c.fail(ctx, report, intention, FailureCapacity, ReasonNoSeats)
}

func (c *EnrollmentCommitter) fail(ctx context.Context, report *reportBuilder, intention models.CourseIntention, kind FailureKind, reason string) error {
	err := c.store.UpdateIntentionStatus(ctx, intention.ID, models.IntentionOutcome{Status: models.IntentionStatusFailed, Reason: reason})
	if err != nil {
		if appErrors.IsFatal(err) {
			return err
		}
		c.logger.Error("failed to record intention failure", zap.String("intention_id", intention.ID), zap.Error(err))
	}
	report.failed(kind, intention, reason)
	return nil
}

// authoritativePrerequisites uses the first section's list for the whole
// course-term, falling back to the catalog when no section exists.
func authoritativePrerequisites(plan CourseTermPlan) []string {
	if len(plan.Sections) > 0 {
		return plan.Sections[0].Prerequisites
	}
	if plan.Course != nil {
		return plan.Course.Prerequisites
	}
	return nil
}

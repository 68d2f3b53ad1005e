package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

// Gateway exposes every store operation a processing run needs and owns the
// transactional enrollment commit.
type Gateway struct {
	db          *sqlx.DB
	intentions  *IntentionRepository
	courses     *CourseRepository
	offerings   *OfferingRepository
	sections    *SectionRepository
	instructors *InstructorRepository
	rooms       *RoomRepository
	students    *StudentRepository
	enrollments *EnrollmentRepository
}

// NewGateway wires the per-table repositories around a shared connection pool.
func NewGateway(db *sqlx.DB) *Gateway {
	return &Gateway{
		db:          db,
		intentions:  NewIntentionRepository(db),
		courses:     NewCourseRepository(db),
		offerings:   NewOfferingRepository(db),
		sections:    NewSectionRepository(db),
		instructors: NewInstructorRepository(db),
		rooms:       NewRoomRepository(db),
		students:    NewStudentRepository(db),
		enrollments: NewEnrollmentRepository(db),
	}
}

// ListPendingIntentions returns every pending intention in submission order.
func (g *Gateway) ListPendingIntentions(ctx context.Context) ([]models.CourseIntention, error) {
	return g.intentions.ListPending(ctx)
}

// FindStudent returns a student or a not found error.
func (g *Gateway) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	return g.students.FindByID(ctx, id)
}

// FindCourse returns a catalog course or a not found error.
func (g *Gateway) FindCourse(ctx context.Context, code string) (*models.Course, error) {
	return g.courses.FindByCode(ctx, code)
}

// FindCourseSections lists sections of a course-term in label order.
func (g *Gateway) FindCourseSections(ctx context.Context, courseCode, term string) ([]models.Section, error) {
	return g.sections.ListByCourseTerm(ctx, courseCode, term)
}

// FindOrCreateOffering returns the course-term offering, creating it when missing.
func (g *Gateway) FindOrCreateOffering(ctx context.Context, courseCode, term string, defaults models.OfferingDefaults) (*models.Offering, error) {
	return g.offerings.FindOrCreate(ctx, courseCode, term, defaults)
}

// CreateSection inserts a new section.
func (g *Gateway) CreateSection(ctx context.Context, section *models.Section) error {
	return g.sections.Create(ctx, section)
}

// UpdateSection persists the schedule assignment of a section.
func (g *Gateway) UpdateSection(ctx context.Context, section *models.Section) error {
	return g.sections.UpdateAssignment(ctx, section)
}

// UpdateOffering persists the scheduling outcome of an offering.
func (g *Gateway) UpdateOffering(ctx context.Context, offering *models.Offering) error {
	return g.offerings.Update(ctx, offering)
}

// ListScheduledOfferings returns offerings of the given terms published by any run.
func (g *Gateway) ListScheduledOfferings(ctx context.Context, terms []string) ([]models.Offering, error) {
	return g.offerings.ListScheduled(ctx, terms)
}

// FindInstructorsTeaching lists instructors qualified for any of the courses.
func (g *Gateway) FindInstructorsTeaching(ctx context.Context, courseCodes []string) ([]models.Instructor, error) {
	return g.instructors.ListTeaching(ctx, courseCodes)
}

// FindRoomsWithCapacity lists rooms seating at least minCapacity.
func (g *Gateway) FindRoomsWithCapacity(ctx context.Context, minCapacity int) ([]models.Room, error) {
	return g.rooms.ListWithCapacity(ctx, minCapacity)
}

// UpdateIntentionStatus records a terminal outcome for a pending intention.
func (g *Gateway) UpdateIntentionStatus(ctx context.Context, id string, outcome models.IntentionOutcome) error {
	_, err := g.intentions.UpdateStatus(ctx, nil, id, outcome)
	return err
}

// CommitEnrollment seats a student in one transaction: the enrollment row, the
// seat decrement, the student's section list and the intention status either
// all land or none do. Re-committing an existing enrollment takes no seat, and
// seated reports whether this call took one.
func (g *Gateway) CommitEnrollment(ctx context.Context, commit models.EnrollmentCommit) (seated bool, err error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, classify("begin enrollment transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment := commit.Enrollment
	inserted, err := g.enrollments.Insert(ctx, tx, &enrollment)
	if err != nil {
		return false, err
	}
	if inserted {
		var taken bool
		taken, err = g.sections.DecrementSeat(ctx, tx, enrollment.SectionID)
		if err != nil {
			return false, err
		}
		if !taken {
			err = appErrors.Clone(appErrors.ErrCapacityExhausted, fmt.Sprintf("section %s is full", enrollment.SectionID))
			return false, err
		}
	}

	if err = g.students.AppendSection(ctx, tx, enrollment.StudentID, enrollment.SectionID); err != nil {
		return false, err
	}

	sectionID := enrollment.SectionID
	updated, err := g.intentions.UpdateStatus(ctx, tx, commit.IntentionID, models.IntentionOutcome{
		Status:    models.IntentionStatusEnrolled,
		SectionID: &sectionID,
	})
	if err != nil {
		return false, err
	}
	if !updated {
		err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("intention %s already processed", commit.IntentionID))
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, classify("commit enrollment", err)
	}
	return inserted, nil
}

// ListTimetable returns published sections of a term.
func (g *Gateway) ListTimetable(ctx context.Context, term string) ([]models.TimetableEntry, error) {
	return g.sections.ListPublished(ctx, term)
}

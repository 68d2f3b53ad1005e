package service

import (
	"fmt"

	"github.com/noah-isme/course-intake-api/internal/models"
)

// FailureKind classifies why an intention or a whole course-term failed.
type FailureKind int

const (
	FailureScheduling FailureKind = iota + 1
	FailurePrerequisites
	FailureCapacity
	FailureNotFound
)

// Intention failure reasons recorded on the intention's error field.
const (
	ReasonUnschedulable        = "no feasible time/instructor/room combination"
	ReasonMissingPrerequisites = "missing prerequisites"
	ReasonNoSeats              = "no available seats"
	ReasonStudentNotFound      = "student not found"
	ReasonScheduleConflict     = "schedule conflict"
)

// GroupFailure marks a course-term whose intentions all fail for one reason.
type GroupFailure struct {
	Kind   FailureKind
	Reason string
}

// reportBuilder accumulates counters and operator diagnostics during a run.
type reportBuilder struct {
	report models.ProcessingReport
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{report: models.ProcessingReport{Details: []string{}}}
}

func (b *reportBuilder) detail(format string, args ...interface{}) {
	b.report.Details = append(b.report.Details, fmt.Sprintf(format, args...))
}

func (b *reportBuilder) sectionsCreated(n int) {
	b.report.SectionsCreated += n
}

func (b *reportBuilder) scheduled(key models.CourseTermKey, outcome ScheduleOutcome) {
	b.report.CourseTermsScheduled++
	b.detail("Scheduled %s %s at %s with instructor %s in room %s", key.CourseCode, key.Term, outcome.Combo, outcome.InstructorID, outcome.RoomID)
}

func (b *reportBuilder) unscheduled(key models.CourseTermKey, reason string) {
	b.report.CourseTermsUnscheduled++
	b.detail("%s for %s %s", reason, key.CourseCode, key.Term)
}

func (b *reportBuilder) enrolled(intention models.CourseIntention, sectionID string) {
	b.report.SuccessfulEnrollments++
	b.detail("Student %s enrolled in %s", intention.StudentID, sectionID)
}

func (b *reportBuilder) failed(kind FailureKind, intention models.CourseIntention, reason string) {
	switch kind {
	case FailurePrerequisites:
		b.report.FailedPrerequisites++
		b.detail("Student %s missing prerequisites for %s", intention.StudentID, intention.CourseCode)
		return
	case FailureCapacity:
		b.report.FailedCapacity++
	case FailureNotFound:
		b.report.FailedNotFound++
	default:
		b.report.FailedScheduling++
	}
	b.detail("Could not enroll student %s in %s: %s", intention.StudentID, intention.CourseCode, reason)
}

func (b *reportBuilder) build() models.ProcessingReport {
	return b.report
}

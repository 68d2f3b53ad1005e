package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type commitFixture struct {
	gw       *memoryGateway
	plans    []CourseTermPlan
	outcomes map[models.CourseTermKey]ScheduleOutcome
	students StudentDirectory
}

func newCommitFixture(t *testing.T, gw *memoryGateway, groups ...CourseTermGroup) *commitFixture {
	t.Helper()
	planner := NewCapacityPlanner(gw, 30, nil)
	fixture := &commitFixture{gw: gw, outcomes: make(map[models.CourseTermKey]ScheduleOutcome), students: NewStudentDirectory()}
	for _, group := range groups {
		plan, err := planner.Plan(context.Background(), group)
		require.NoError(t, err)
		fixture.plans = append(fixture.plans, plan)
		for _, intention := range group.Intentions {
			if student, err := gw.FindStudent(context.Background(), intention.StudentID); err == nil {
				fixture.students.Add(student)
			}
		}
	}
	return fixture
}

func (f *commitFixture) schedule(course, term string, c models.SlotCombo) {
	f.outcomes[models.CourseTermKey{CourseCode: course, Term: term}] = Scheduled(c, "i-1", "r-1")
}

func (f *commitFixture) commit(t *testing.T) models.ProcessingReport {
	t.Helper()
	report := newReportBuilder()
	require.NoError(t, NewEnrollmentCommitter(f.gw, nil).Commit(context.Background(), f.plans, f.outcomes, f.students, report))
	return report.build()
}

func intentionGroup(course, term string, intentions ...models.CourseIntention) CourseTermGroup {
	return CourseTermGroup{Key: models.CourseTermKey{CourseCode: course, Term: term}, Intentions: append([]models.CourseIntention(nil), intentions...)}
}

func TestCommitterEnrollsStudentWithPrerequisites(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("MATH201", "MATH101")
	gw.addStudent("S", "MATH101")
	gw.addIntentions("MATH201", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("MATH201", "2024FA", gw.intentions...))
	fixture.schedule("MATH201", "2024FA", combo(slot(models.Monday, 8, 11)))
	report := fixture.commit(t)

	assert.Equal(t, 1, report.SuccessfulEnrollments)
	intention := gw.intention("int-1")
	assert.Equal(t, models.IntentionStatusEnrolled, intention.Status)
	require.NotNil(t, intention.SectionID)
	assert.Equal(t, "MATH201-2024FA-S1", *intention.SectionID)
	assert.Equal(t, []int{29}, gw.seatsAvailable("MATH201", "2024FA"))
	assert.Contains(t, gw.enrollments, "S-MATH201-2024FA-S1")
	assert.Contains(t, report.Details, "Student S enrolled in MATH201-2024FA-S1")
}

func TestCommitterRejectsMissingPrerequisites(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("MATH201", "MATH101")
	gw.addStudent("S")
	gw.addIntentions("MATH201", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("MATH201", "2024FA", gw.intentions...))
	fixture.schedule("MATH201", "2024FA", combo(slot(models.Monday, 8, 11)))
	report := fixture.commit(t)

	assert.Equal(t, 1, report.FailedPrerequisites)
	intention := gw.intention("int-1")
	assert.Equal(t, models.IntentionStatusFailed, intention.Status)
	require.NotNil(t, intention.Error)
	assert.Equal(t, ReasonMissingPrerequisites, *intention.Error)
	assert.Equal(t, []int{30}, gw.seatsAvailable("MATH201", "2024FA"))
	assert.Empty(t, gw.enrollments)
	assert.Zero(t, gw.calls["CommitEnrollment"])
}

func TestCommitterUnscheduledGroupFailsAsScheduling(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("MATH201", "MATH101")
	gw.addStudent("S")
	gw.addIntentions("MATH201", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("MATH201", "2024FA", gw.intentions...))
	fixture.outcomes[models.CourseTermKey{CourseCode: "MATH201", Term: "2024FA"}] = Unschedulable("no room seats 30 students")
	report := fixture.commit(t)

	assert.Equal(t, 1, report.FailedScheduling)
	assert.Zero(t, report.FailedPrerequisites)
	assert.Equal(t, ReasonUnschedulable, *gw.intention("int-1").Error)
}

func TestCommitterStudentNotFound(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("CS101")
	gw.addIntentions("CS101", "2024FA", "ghost")

	fixture := newCommitFixture(t, gw, intentionGroup("CS101", "2024FA", gw.intentions...))
	fixture.schedule("CS101", "2024FA", combo(slot(models.Monday, 8, 11)))
	report := fixture.commit(t)

	assert.Equal(t, 1, report.FailedNotFound)
	assert.Equal(t, ReasonStudentNotFound, *gw.intention("int-1").Error)
}

func TestCommitterFallsBackToNextSectionWhenFull(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("CS101")
	gw.addStudent("S")
	key := models.CourseTermKey{CourseCode: "CS101", Term: "2024FA"}
	gw.sections[key] = []models.Section{
		{ID: "CS101-2024FA-S1", CourseCode: "CS101", Term: "2024FA", Label: "S1", SeatsTotal: 30, SeatsAvailable: 1},
		{ID: "CS101-2024FA-S2", CourseCode: "CS101", Term: "2024FA", Label: "S2", SeatsTotal: 30, SeatsAvailable: 30},
	}
	gw.addIntentions("CS101", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("CS101", "2024FA", gw.intentions...))
	fixture.schedule("CS101", "2024FA", combo(slot(models.Monday, 8, 11)))
	// another writer takes the last seat of S1 after planning
	gw.sections[key][0].SeatsAvailable = 0
	report := fixture.commit(t)

	assert.Equal(t, 1, report.SuccessfulEnrollments)
	assert.Equal(t, "CS101-2024FA-S2", *gw.intention("int-1").SectionID)
	assert.Equal(t, []int{0, 29}, gw.seatsAvailable("CS101", "2024FA"))
}

func TestCommitterNoSeats(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("CS101")
	gw.addStudent("S")
	key := models.CourseTermKey{CourseCode: "CS101", Term: "2024FA"}
	gw.sections[key] = []models.Section{
		{ID: "CS101-2024FA-S1", CourseCode: "CS101", Term: "2024FA", Label: "S1", SeatsTotal: 30, SeatsAvailable: 0},
	}
	gw.addIntentions("CS101", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("CS101", "2024FA", gw.intentions...))
	fixture.schedule("CS101", "2024FA", combo(slot(models.Monday, 8, 11)))
	report := fixture.commit(t)

	assert.Equal(t, 1, report.FailedCapacity)
	assert.Equal(t, ReasonNoSeats, *gw.intention("int-1").Error)
	assert.Equal(t, []int{0}, gw.seatsAvailable("CS101", "2024FA"))
}

func TestCommitterScheduleConflictWithinTerm(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addStudent("S")
	gw.addIntentions("A", "2024FA", "S")
	gw.addIntentions("B", "2024FA", "S")

	fixture := newCommitFixture(t, gw,
		intentionGroup("A", "2024FA", gw.intentions[0]),
		intentionGroup("B", "2024FA", gw.intentions[1]),
	)
	fixture.schedule("A", "2024FA", combo(slot(models.Monday, 8, 11)))
	fixture.schedule("B", "2024FA", combo(slot(models.Monday, 10, 11), slot(models.Tuesday, 8, 10)))
	report := fixture.commit(t)

	assert.Equal(t, 1, report.SuccessfulEnrollments)
	assert.Equal(t, 1, report.FailedScheduling)
	assert.Equal(t, ReasonScheduleConflict, *gw.intention("int-2").Error)
}

func TestCommitterAbortsOnStoreOutage(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("CS101")
	gw.addStudent("S")
	gw.addIntentions("CS101", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("CS101", "2024FA", gw.intentions...))
	fixture.schedule("CS101", "2024FA", combo(slot(models.Monday, 8, 11)))
	gw.failOn["CommitEnrollment"] = appErrors.Clone(appErrors.ErrStoreUnavailable, "down")

	err := NewEnrollmentCommitter(gw, nil).Commit(context.Background(), fixture.plans, fixture.outcomes, fixture.students, newReportBuilder())
	require.Error(t, err)
	assert.True(t, appErrors.IsFatal(err))
	assert.Equal(t, models.IntentionStatusPending, gw.intention("int-1").Status)
}

func TestCommitterSkipsAlreadyProcessedIntention(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("CS101")
	gw.addStudent("S")
	gw.addIntentions("CS101", "2024FA", "S")

	fixture := newCommitFixture(t, gw, intentionGroup("CS101", "2024FA", gw.intentions...))
	fixture.schedule("CS101", "2024FA", combo(slot(models.Monday, 8, 11)))
	gw.intentions[0].Status = models.IntentionStatusEnrolled
	report := fixture.commit(t)

	assert.Zero(t, report.Processed())
	assert.Contains(t, report.Details, "Intention int-1 was already processed")
	assert.Equal(t, []int{30}, gw.seatsAvailable("CS101", "2024FA"))
}

func TestCommitterExistingEnrollmentKeepsSeatCount(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("CS101")
	gw.addStudent("A")
	gw.addStudent("B")
	gw.addIntentions("CS101", "2024FA", "A", "B")

	key := models.CourseTermKey{CourseCode: "CS101", Term: "2024FA"}
	plan, err := NewCapacityPlanner(gw, 2, nil).Plan(context.Background(), intentionGroup("CS101", "2024FA", gw.intentions...))
	require.NoError(t, err)
	require.Len(t, plan.Sections, 2)

	// A holds a seat in S1 from an earlier, interrupted run.
	first := plan.Sections[0].ID
	gw.enrollments[models.EnrollmentID("A", first)] = models.Enrollment{ID: models.EnrollmentID("A", first), StudentID: "A", SectionID: first}
	gw.sections[key][0].SeatsAvailable = 1
	plan.Sections[0].SeatsAvailable = 1

	students := NewStudentDirectory()
	for _, id := range []string{"A", "B"} {
		student, err := gw.FindStudent(context.Background(), id)
		require.NoError(t, err)
		students.Add(student)
	}
	outcomes := map[models.CourseTermKey]ScheduleOutcome{key: Scheduled(combo(slot(models.Monday, 8, 11)), "i-1", "r-1")}
	report := newReportBuilder()
	require.NoError(t, NewEnrollmentCommitter(gw, nil).Commit(context.Background(), []CourseTermPlan{plan}, outcomes, students, report))

	built := report.build()
	assert.Equal(t, 2, built.SuccessfulEnrollments)
	assert.Zero(t, built.FailedCapacity)
	b := gw.intention("int-2")
	require.NotNil(t, b.SectionID)
	assert.Equal(t, first, *b.SectionID)
	assert.Equal(t, []int{0, 2}, gw.seatsAvailable("CS101", "2024FA"))
}

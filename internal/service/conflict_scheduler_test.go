package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

func slot(day models.Weekday, start, end int) models.TimeSlot {
	return models.TimeSlot{Day: day, Start: start, End: end}
}

func combo(slots ...models.TimeSlot) models.SlotCombo {
	return models.NewSlotCombo(slots...)
}

type scheduleFixture struct {
	gw     *memoryGateway
	groups []CourseTermGroup
	pool   []models.SlotCombo
}

func (f scheduleFixture) run(t *testing.T) ([]CourseTermPlan, map[models.CourseTermKey]ScheduleOutcome, *reportBuilder) {
	t.Helper()
	ctx := context.Background()
	planner := NewCapacityPlanner(f.gw, 30, nil)
	plans := make([]CourseTermPlan, 0, len(f.groups))
	byStudent := make(map[string][]models.CourseIntention)
	for _, group := range f.groups {
		plan, err := planner.Plan(ctx, group)
		require.NoError(t, err)
		plans = append(plans, plan)
		for _, intention := range group.Intentions {
			byStudent[intention.StudentID] = append(byStudent[intention.StudentID], intention)
		}
	}
	pool := f.pool
	if pool == nil {
		pool = BuildSlotPool()
	}
	terms := make([]string, 0, len(f.groups))
	for _, group := range f.groups {
		if !containsString(terms, group.Key.Term) {
			terms = append(terms, group.Key.Term)
		}
	}
	booked, err := f.gw.ListScheduledOfferings(ctx, terms)
	require.NoError(t, err)
	res := SchedulingResources{Instructors: f.gw.instructors, Rooms: f.gw.rooms, ByStudent: byStudent, Booked: booked}
	report := newReportBuilder()
	outcomes, err := NewConflictScheduler(f.gw, pool, nil).Schedule(ctx, newRunState(), plans, res, report)
	require.NoError(t, err)
	return plans, outcomes, report
}

func TestSchedulerSoleInstructorConflict(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A", "B")
	gw.addRoom("r-1", 30)
	gw.addRoom("r-2", 30)

	fixture := scheduleFixture{
		gw:     gw,
		groups: []CourseTermGroup{groupOf("B", "2024FA", 1), groupOf("A", "2024FA", 2)},
		pool:   []models.SlotCombo{combo(slot(models.Monday, 8, 11)), combo(slot(models.Monday, 9, 12))},
	}
	_, outcomes, report := fixture.run(t)

	a := outcomes[models.CourseTermKey{CourseCode: "A", Term: "2024FA"}]
	require.True(t, a.IsScheduled())
	assert.Equal(t, "MON 08-11", a.Combo.Key())
	assert.Equal(t, "i-1", a.InstructorID)
	assert.Equal(t, "r-1", a.RoomID)

	b := outcomes[models.CourseTermKey{CourseCode: "B", Term: "2024FA"}]
	assert.False(t, b.IsScheduled())
	assert.Equal(t, ReasonUnschedulable, b.Reason)

	built := report.build()
	assert.Equal(t, 1, built.CourseTermsScheduled)
	assert.Equal(t, 1, built.CourseTermsUnscheduled)
	assert.Contains(t, built.Details, "no feasible time/instructor/room combination for B 2024FA")

	offering := gw.offerings[models.CourseTermKey{CourseCode: "B", Term: "2024FA"}]
	assert.Equal(t, models.OfferingStatusUnschedulable, offering.Status)
	require.NotNil(t, offering.Diagnostic)
}

func TestSchedulerRoomsTooSmall(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addInstructor("i-1", "A")
	gw.addRoom("r-small", 20)

	_, outcomes, _ := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 3)}}.run(t)

	outcome := outcomes[models.CourseTermKey{CourseCode: "A", Term: "2024FA"}]
	assert.False(t, outcome.IsScheduled())
	assert.Equal(t, "no room seats 30 students", outcome.Reason)
}

func TestSchedulerNoEligibleInstructor(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addInstructor("i-1", "Z")
	gw.addRoom("r-1", 40)

	_, outcomes, _ := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 1)}}.run(t)
	assert.Equal(t, "no instructor can teach A", outcomes[models.CourseTermKey{CourseCode: "A", Term: "2024FA"}].Reason)
}

func TestSchedulerHighestDemandFirstAndSlotExclusivity(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A")
	gw.addInstructor("i-2", "B")
	gw.addRoom("r-1", 30)

	_, outcomes, _ := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 1), groupOf("B", "2024FA", 5)}}.run(t)

	b := outcomes[models.CourseTermKey{CourseCode: "B", Term: "2024FA"}]
	a := outcomes[models.CourseTermKey{CourseCode: "A", Term: "2024FA"}]
	assert.Equal(t, "MON 08-11", b.Combo.Key())
	// single room: A must wait until the room frees up
	assert.Equal(t, "MON 11-14", a.Combo.Key())
}

func TestSchedulerAvoidsStudentOverlapWithinTerm(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A")
	gw.addInstructor("i-2", "B")
	gw.addRoom("r-1", 30)
	gw.addRoom("r-2", 30)

	shared := pendingIntention("b-1", "s1", "B", "2024FA")
	groups := []CourseTermGroup{
		{Key: models.CourseTermKey{CourseCode: "A", Term: "2024FA"}, Intentions: []models.CourseIntention{
			pendingIntention("a-1", "s1", "A", "2024FA"),
			pendingIntention("a-2", "s2", "A", "2024FA"),
		}},
		{Key: models.CourseTermKey{CourseCode: "B", Term: "2024FA"}, Intentions: []models.CourseIntention{shared}},
	}
	_, outcomes, _ := scheduleFixture{gw: gw, groups: groups}.run(t)

	a := outcomes[models.CourseTermKey{CourseCode: "A", Term: "2024FA"}]
	b := outcomes[models.CourseTermKey{CourseCode: "B", Term: "2024FA"}]
	assert.Equal(t, "MON 08-11", a.Combo.Key())
	assert.Equal(t, "MON 11-14", b.Combo.Key())
	assert.False(t, a.Combo.Overlaps(b.Combo))
}

func TestSchedulerIgnoresStudentOverlapAcrossTerms(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A")
	gw.addInstructor("i-2", "B")
	gw.addRoom("r-1", 30)
	gw.addRoom("r-2", 30)

	groups := []CourseTermGroup{
		{Key: models.CourseTermKey{CourseCode: "A", Term: "2024FA"}, Intentions: []models.CourseIntention{
			pendingIntention("a-1", "s1", "A", "2024FA"),
			pendingIntention("a-2", "s2", "A", "2024FA"),
		}},
		{Key: models.CourseTermKey{CourseCode: "B", Term: "2025SP"}, Intentions: []models.CourseIntention{
			pendingIntention("b-1", "s1", "B", "2025SP"),
		}},
	}
	_, outcomes, _ := scheduleFixture{gw: gw, groups: groups}.run(t)

	b := outcomes[models.CourseTermKey{CourseCode: "B", Term: "2025SP"}]
	assert.Equal(t, "MON 09-12", b.Combo.Key())
	assert.Equal(t, "r-2", b.RoomID)
}

func TestSchedulerPublishesSections(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addInstructor("i-1", "A")
	gw.addRoom("r-1", 30)

	scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 31)}}.run(t)

	key := models.CourseTermKey{CourseCode: "A", Term: "2024FA"}
	require.Len(t, gw.sections[key], 2)
	for _, section := range gw.sections[key] {
		require.True(t, section.Scheduled())
		assert.Equal(t, "MON 08-11", section.AssignedTime.Key())
		assert.Equal(t, "i-1", *section.InstructorID)
		assert.Equal(t, "r-1", *section.RoomID)
	}
	assert.Equal(t, models.OfferingStatusScheduled, gw.offerings[key].Status)
}

func TestSchedulerReusesPublishedOffering(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A", "B")
	gw.addRoom("r-1", 30)

	scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 1)}}.run(t)
	_, outcomes, report := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 1), groupOf("B", "2024FA", 1)}}.run(t)

	a := outcomes[models.CourseTermKey{CourseCode: "A", Term: "2024FA"}]
	b := outcomes[models.CourseTermKey{CourseCode: "B", Term: "2024FA"}]
	assert.Equal(t, "MON 08-11", a.Combo.Key())
	assert.Equal(t, "MON 11-14", b.Combo.Key())
	assert.Equal(t, 2, report.build().CourseTermsScheduled)
}

func TestSchedulerRespectsBookingsOfOtherOfferings(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A", "B")
	gw.addRoom("r-1", 30)

	scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2024FA", 1)}}.run(t)
	_, outcomes, _ := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("B", "2024FA", 1)}}.run(t)

	assert.Equal(t, "MON 11-14", outcomes[models.CourseTermKey{CourseCode: "B", Term: "2024FA"}].Combo.Key())
}

func TestSchedulerIgnoresBookingsOfOtherTerms(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addCourse("B")
	gw.addInstructor("i-1", "A", "B")
	gw.addRoom("r-1", 30)
	monday := []models.SlotCombo{combo(slot(models.Monday, 8, 11))}

	_, first, _ := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("A", "2023FA", 1)}, pool: monday}.run(t)
	require.True(t, first[models.CourseTermKey{CourseCode: "A", Term: "2023FA"}].IsScheduled())

	_, outcomes, _ := scheduleFixture{gw: gw, groups: []CourseTermGroup{groupOf("B", "2025SP", 1)}, pool: monday}.run(t)
	b := outcomes[models.CourseTermKey{CourseCode: "B", Term: "2025SP"}]
	require.True(t, b.IsScheduled(), b.Reason)
	assert.Equal(t, "MON 08-11", b.Combo.Key())
	assert.Equal(t, "i-1", b.InstructorID)
	assert.Equal(t, "r-1", b.RoomID)
}

func TestSchedulerSkipsOtherTermBookingsPassedIn(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("B")
	gw.addInstructor("i-1", "B")
	gw.addRoom("r-1", 30)
	planner := NewCapacityPlanner(gw, 30, nil)
	plan, err := planner.Plan(context.Background(), groupOf("B", "2025SP", 1))
	require.NoError(t, err)

	instructor, room := "i-1", "r-1"
	old := models.Offering{ID: "A-2023FA", CourseCode: "A", Term: "2023FA", Status: models.OfferingStatusScheduled,
		AssignedTime: combo(slot(models.Monday, 8, 11)), InstructorID: &instructor, RoomID: &room}
	res := SchedulingResources{Instructors: gw.instructors, Rooms: gw.rooms, Booked: []models.Offering{old}}
	pool := []models.SlotCombo{combo(slot(models.Monday, 8, 11))}

	outcomes, err := NewConflictScheduler(gw, pool, nil).Schedule(context.Background(), newRunState(), []CourseTermPlan{plan}, res, newReportBuilder())
	require.NoError(t, err)
	assert.True(t, outcomes[models.CourseTermKey{CourseCode: "B", Term: "2025SP"}].IsScheduled())
}

func TestSchedulerInvariants(t *testing.T) {
	gw := newMemoryGateway()
	courses := []string{"A", "B", "C", "D", "E", "F"}
	for _, code := range courses {
		gw.addCourse(code)
	}
	gw.addInstructor("i-1", "A", "B", "C")
	gw.addInstructor("i-2", "C", "D", "E", "F")
	gw.addRoom("r-1", 30)
	gw.addRoom("r-2", 60)

	var groups []CourseTermGroup
	for i, code := range courses {
		group := CourseTermGroup{Key: models.CourseTermKey{CourseCode: code, Term: "2024FA"}}
		for s := 0; s <= i; s++ {
			group.Intentions = append(group.Intentions, pendingIntention(code+string(rune('0'+s)), "s"+string(rune('0'+s)), code, "2024FA"))
		}
		groups = append(groups, group)
	}
	_, outcomes, _ := scheduleFixture{gw: gw, groups: groups}.run(t)

	keys := make([]models.CourseTermKey, 0, len(outcomes))
	for key, outcome := range outcomes {
		require.True(t, outcome.IsScheduled(), key.String())
		keys = append(keys, key)
	}
	usedSlots := make(map[models.TimeSlot]string)
	for _, key := range keys {
		for _, ts := range outcomes[key].Combo {
			owner, taken := usedSlots[ts]
			require.False(t, taken, "%s reused by %s and %s", ts, owner, key)
			usedSlots[ts] = key.String()
		}
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			a, b := outcomes[keys[i]], outcomes[keys[j]]
			if !a.Combo.Overlaps(b.Combo) {
				continue
			}
			assert.NotEqual(t, a.InstructorID, b.InstructorID, "instructor double booked")
			assert.NotEqual(t, a.RoomID, b.RoomID, "room double booked")
			// every pair of groups shares student s0
			t.Errorf("student overlap between %s and %s", keys[i], keys[j])
		}
	}
}

func TestSchedulerStoreOutageAborts(t *testing.T) {
	gw := newMemoryGateway()
	gw.addCourse("A")
	gw.addInstructor("i-1", "A")
	gw.addRoom("r-1", 30)
	planner := NewCapacityPlanner(gw, 30, nil)
	plan, err := planner.Plan(context.Background(), groupOf("A", "2024FA", 1))
	require.NoError(t, err)

	gw.failOn["UpdateOffering"] = appErrors.Clone(appErrors.ErrStoreUnavailable, "down")
	res := SchedulingResources{Instructors: gw.instructors, Rooms: gw.rooms}
	_, err = NewConflictScheduler(gw, BuildSlotPool(), nil).Schedule(context.Background(), newRunState(), []CourseTermPlan{plan}, res, newReportBuilder())
	require.Error(t, err)
	assert.True(t, appErrors.IsFatal(err))
}

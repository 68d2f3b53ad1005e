package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type scheduleStore interface {
	UpdateOffering(ctx context.Context, offering *models.Offering) error
	UpdateSection(ctx context.Context, section *models.Section) error
}

// ScheduleOutcomeKind tags a scheduling result.
type ScheduleOutcomeKind int

const (
	OutcomeScheduled ScheduleOutcomeKind = iota + 1
	OutcomeUnschedulable
)

// ScheduleOutcome is the result of searching for a course-term placement.
// Combo, InstructorID and RoomID are set only when Kind is OutcomeScheduled.
type ScheduleOutcome struct {
	Kind         ScheduleOutcomeKind
	Combo        models.SlotCombo
	InstructorID string
	RoomID       string
	Reason       string
}

// Scheduled builds a successful outcome.
func Scheduled(combo models.SlotCombo, instructorID, roomID string) ScheduleOutcome {
	return ScheduleOutcome{Kind: OutcomeScheduled, Combo: combo, InstructorID: instructorID, RoomID: roomID}
}

// Unschedulable builds a failed outcome carrying an operator diagnostic.
func Unschedulable(reason string) ScheduleOutcome {
	return ScheduleOutcome{Kind: OutcomeUnschedulable, Reason: reason}
}

// IsScheduled reports whether the course-term received a placement.
func (o ScheduleOutcome) IsScheduled() bool {
	return o.Kind == OutcomeScheduled
}

// SchedulingResources is the read-only snapshot a run schedules against.
type SchedulingResources struct {
	Instructors []models.Instructor
	Rooms       []models.Room
	ByStudent   map[string][]models.CourseIntention
	// Booked holds offerings published by earlier runs; their instructors and
	// rooms stay occupied within the offering's own term.
	Booked []models.Offering
}

type cellSet map[models.SlotCell]struct{}

func (c cellSet) free(cells []models.SlotCell) bool {
	for _, cell := range cells {
		if _, taken := c[cell]; taken {
			return false
		}
	}
	return true
}

func (c cellSet) reserve(cells []models.SlotCell) {
	for _, cell := range cells {
		c[cell] = struct{}{}
	}
}

// runState carries every consumed resource of one processing run.
type runState struct {
	// consumed holds every TimeSlot already used by any course-term in the run.
	consumed    map[models.TimeSlot]struct{}
	instructors map[string]cellSet
	rooms       map[string]cellSet
	assignments map[models.CourseTermKey]models.SlotCombo
}

func newRunState() *runState {
	return &runState{
		consumed:    make(map[models.TimeSlot]struct{}),
		instructors: make(map[string]cellSet),
		rooms:       make(map[string]cellSet),
		assignments: make(map[models.CourseTermKey]models.SlotCombo),
	}
}

func (s *runState) globallyFree(combo models.SlotCombo) bool {
	for _, slot := range combo {
		if _, used := s.consumed[slot]; used {
			return false
		}
	}
	return true
}

func (s *runState) instructorFree(id string, cells []models.SlotCell) bool {
	return s.instructors[id].free(cells)
}

func (s *runState) roomFree(id string, cells []models.SlotCell) bool {
	return s.rooms[id].free(cells)
}

func (s *runState) book(instructorID, roomID string, combo models.SlotCombo) {
	cells := combo.Cells()
	if instructorID != "" {
		if s.instructors[instructorID] == nil {
			s.instructors[instructorID] = make(cellSet)
		}
		s.instructors[instructorID].reserve(cells)
	}
	if roomID != "" {
		if s.rooms[roomID] == nil {
			s.rooms[roomID] = make(cellSet)
		}
		s.rooms[roomID].reserve(cells)
	}
}

func (s *runState) accept(key models.CourseTermKey, outcome ScheduleOutcome) {
	for _, slot := range outcome.Combo {
		s.consumed[slot] = struct{}{}
	}
	s.book(outcome.InstructorID, outcome.RoomID, outcome.Combo)
	s.assignments[key] = outcome.Combo
}

// studentClash reports whether combo overlaps an already assigned course-term
// of the same term that one of the group's students also intends to take.
func (s *runState) studentClash(combo models.SlotCombo, related []models.CourseTermKey) bool {
	for _, other := range related {
		assigned, ok := s.assignments[other]
		if ok && combo.Overlaps(assigned) {
			return true
		}
	}
	return false
}

// ConflictScheduler places course-terms on the weekly grid with a greedy
// first-fit search over the slot pool.
type ConflictScheduler struct {
	store  scheduleStore
	pool   []models.SlotCombo
	logger *zap.Logger
}

// NewConflictScheduler constructs the scheduler over a prepared slot pool.
func NewConflictScheduler(store scheduleStore, pool []models.SlotCombo, logger *zap.Logger) *ConflictScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictScheduler{store: store, pool: pool, logger: logger}
}

// Schedule assigns a time, instructor and room to every planned course-term,
// highest demand first, and publishes the result onto offerings and sections.
// Only store outages and cancellation are returned as errors.
func (s *ConflictScheduler) Schedule(ctx context.Context, state *runState, plans []CourseTermPlan, res SchedulingResources, report *reportBuilder) (map[models.CourseTermKey]ScheduleOutcome, error) {
	outcomes := make(map[models.CourseTermKey]ScheduleOutcome, len(plans))

	inRun := make(map[string]struct{}, len(plans))
	terms := make(map[string]struct{})
	for _, plan := range plans {
		terms[plan.Group.Key.Term] = struct{}{}
		if plan.Offering != nil {
			inRun[plan.Offering.ID] = struct{}{}
		}
	}
	// Instructors and rooms are only busy within the term an offering runs in.
	for _, booked := range res.Booked {
		if _, ok := inRun[booked.ID]; ok || len(booked.AssignedTime) == 0 {
			continue
		}
		if _, ok := terms[booked.Term]; !ok {
			continue
		}
		state.book(deref(booked.InstructorID), deref(booked.RoomID), booked.AssignedTime)
	}

	pending := make([]CourseTermPlan, 0, len(plans))
	for _, plan := range plans {
		if plan.Failure != nil {
			continue
		}
		if published, ok := publishedOutcome(plan.Offering); ok {
			state.accept(plan.Group.Key, published)
			outcomes[plan.Group.Key] = published
			if err := s.publishSections(ctx, plan, published); err != nil {
				if appErrors.IsFatal(err) {
					return outcomes, err
				}
				s.logger.Warn("failed to publish new sections", zap.String("course_term", plan.Group.Key.String()), zap.Error(err))
			}
			report.scheduled(plan.Group.Key, published)
			continue
		}
		pending = append(pending, plan)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Group.Demand() > pending[j].Group.Demand()
	})

	for _, plan := range pending {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		key := plan.Group.Key
		outcome := s.search(state, plan, res)
		if outcome.IsScheduled() {
			if err := s.publish(ctx, plan, outcome); err != nil {
				if appErrors.IsFatal(err) {
					return outcomes, err
				}
				s.logger.Warn("failed to publish schedule", zap.String("course_term", key.String()), zap.Error(err))
				outcome = Unschedulable(fmt.Sprintf("failed to publish schedule: %v", err))
			} else {
				state.accept(key, outcome)
				outcomes[key] = outcome
				report.scheduled(key, outcome)
				continue
			}
		}

		outcomes[key] = outcome
		if err := s.markUnschedulable(ctx, plan, outcome.Reason); err != nil {
			return outcomes, err
		}
		s.logger.Info("course-term unschedulable", zap.String("course_term", key.String()), zap.String("reason", outcome.Reason))
		report.unscheduled(key, ReasonUnschedulable)
	}
	return outcomes, nil
}

func (s *ConflictScheduler) search(state *runState, plan CourseTermPlan, res SchedulingResources) ScheduleOutcome {
	instructors := eligibleInstructors(plan.Course, res.Instructors)
	if len(instructors) == 0 {
		return Unschedulable(fmt.Sprintf("no instructor can teach %s", plan.Group.Key.CourseCode))
	}
	seats := plan.SeatsPerSection()
	rooms := roomsSeating(seats, res.Rooms)
	if len(rooms) == 0 {
		return Unschedulable(fmt.Sprintf("no room seats %d students", seats))
	}
	related := relatedCourseTerms(plan.Group, res.ByStudent)

	for _, combo := range s.pool {
		if !state.globallyFree(combo) || state.studentClash(combo, related) {
			continue
		}
		cells := combo.Cells()
		instructorID := ""
		for _, instructor := range instructors {
			if state.instructorFree(instructor.ID, cells) {
				instructorID = instructor.ID
				break
			}
		}
		if instructorID == "" {
			continue
		}
		for _, room := range rooms {
			if state.roomFree(room.ID, cells) {
				return Scheduled(combo, instructorID, room.ID)
			}
		}
	}
	return Unschedulable(ReasonUnschedulable)
}

func (s *ConflictScheduler) publish(ctx context.Context, plan CourseTermPlan, outcome ScheduleOutcome) error {
	offering := *plan.Offering
	instructorID, roomID := outcome.InstructorID, outcome.RoomID
	offering.AssignedTime = outcome.Combo
	offering.InstructorID = &instructorID
	offering.RoomID = &roomID
	offering.Status = models.OfferingStatusScheduled
	offering.Diagnostic = nil
	if err := s.store.UpdateOffering(ctx, &offering); err != nil {
		return err
	}
	*plan.Offering = offering
	return s.publishSections(ctx, plan, outcome)
}

// publishSections copies the course-term placement onto sections that do not carry it yet.
func (s *ConflictScheduler) publishSections(ctx context.Context, plan CourseTermPlan, outcome ScheduleOutcome) error {
	for i := range plan.Sections {
		section := &plan.Sections[i]
		if section.Scheduled() && section.AssignedTime.Equal(outcome.Combo) &&
			deref(section.InstructorID) == outcome.InstructorID && deref(section.RoomID) == outcome.RoomID {
			continue
		}
		instructorID, roomID := outcome.InstructorID, outcome.RoomID
		section.AssignedTime = outcome.Combo
		section.InstructorID = &instructorID
		section.RoomID = &roomID
		if err := s.store.UpdateSection(ctx, section); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConflictScheduler) markUnschedulable(ctx context.Context, plan CourseTermPlan, reason string) error {
	offering := *plan.Offering
	offering.Status = models.OfferingStatusUnschedulable
	offering.Diagnostic = &reason
	if err := s.store.UpdateOffering(ctx, &offering); err != nil {
		if appErrors.IsFatal(err) {
			return err
		}
		s.logger.Warn("failed to record unschedulable offering", zap.String("offering_id", offering.ID), zap.Error(err))
		return nil
	}
	*plan.Offering = offering
	return nil
}

// publishedOutcome recovers the placement of an offering scheduled by an earlier run.
func publishedOutcome(offering *models.Offering) (ScheduleOutcome, bool) {
	if offering == nil || offering.Status != models.OfferingStatusScheduled || len(offering.AssignedTime) == 0 ||
		offering.InstructorID == nil || offering.RoomID == nil {
		return ScheduleOutcome{}, false
	}
	return Scheduled(offering.AssignedTime, *offering.InstructorID, *offering.RoomID), true
}

func eligibleInstructors(course *models.Course, all []models.Instructor) []models.Instructor {
	if course == nil {
		return nil
	}
	eligible := make([]models.Instructor, 0, len(all))
	for _, instructor := range all {
		if instructor.CanTeach(*course) {
			eligible = append(eligible, instructor)
		}
	}
	return eligible
}

func roomsSeating(seats int, all []models.Room) []models.Room {
	rooms := make([]models.Room, 0, len(all))
	for _, room := range all {
		if room.Capacity >= seats {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// relatedCourseTerms lists the other course-terms in the same term that any
// student of the group also intends to take.
func relatedCourseTerms(group CourseTermGroup, byStudent map[string][]models.CourseIntention) []models.CourseTermKey {
	seen := make(map[models.CourseTermKey]struct{})
	var related []models.CourseTermKey
	for _, intention := range group.Intentions {
		for _, other := range byStudent[intention.StudentID] {
			key := other.CourseTermKey()
			if key == group.Key || key.Term != group.Key.Term {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			related = append(related, key)
		}
	}
	return related
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

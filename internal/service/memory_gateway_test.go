package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

// memoryGateway is an in-memory ProcessingGateway with the same
// conditional-update semantics as the SQL gateway.
type memoryGateway struct {
	mu sync.Mutex

	intentions  []models.CourseIntention
	students    map[string]*models.Student
	courses     map[string]*models.Course
	offerings   map[models.CourseTermKey]*models.Offering
	sections    map[models.CourseTermKey][]models.Section
	instructors []models.Instructor
	rooms       []models.Room
	enrollments map[string]models.Enrollment

	// failOn makes the named operation return the error.
	failOn map[string]error
	// delays makes the named operation block before answering.
	delays map[string]time.Duration
	calls  map[string]int
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		students:    make(map[string]*models.Student),
		courses:     make(map[string]*models.Course),
		offerings:   make(map[models.CourseTermKey]*models.Offering),
		sections:    make(map[models.CourseTermKey][]models.Section),
		enrollments: make(map[string]models.Enrollment),
		failOn:      make(map[string]error),
		delays:      make(map[string]time.Duration),
		calls:       make(map[string]int),
	}
}

func (g *memoryGateway) call(op string) error {
	g.calls[op]++
	if d := g.delays[op]; d > 0 {
		time.Sleep(d)
	}
	return g.failOn[op]
}

func (g *memoryGateway) addCourse(code string, prerequisites ...string) {
	g.courses[code] = &models.Course{Code: code, Name: code, Prerequisites: prerequisites}
}

func (g *memoryGateway) addStudent(id string, completed ...string) {
	g.students[id] = &models.Student{ID: id, FullName: id, CompletedCourses: completed}
}

func (g *memoryGateway) addInstructor(id string, teachable ...string) {
	g.instructors = append(g.instructors, models.Instructor{ID: id, FullName: id, Teachable: teachable})
}

func (g *memoryGateway) addRoom(id string, capacity int) {
	g.rooms = append(g.rooms, models.Room{ID: id, Name: id, Capacity: capacity})
}

func (g *memoryGateway) addIntentions(courseCode, term string, studentIDs ...string) {
	for _, studentID := range studentIDs {
		g.intentions = append(g.intentions, models.CourseIntention{
			ID:         fmt.Sprintf("int-%d", len(g.intentions)+1),
			StudentID:  studentID,
			CourseCode: courseCode,
			Term:       term,
			Status:     models.IntentionStatusPending,
		})
	}
}

func (g *memoryGateway) intention(id string) models.CourseIntention {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, intention := range g.intentions {
		if intention.ID == id {
			return intention
		}
	}
	return models.CourseIntention{}
}

func (g *memoryGateway) countByStatus(status models.IntentionStatus) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, intention := range g.intentions {
		if intention.Status == status {
			count++
		}
	}
	return count
}

func (g *memoryGateway) ListPendingIntentions(ctx context.Context) ([]models.CourseIntention, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListPendingIntentions"); err != nil {
		return nil, err
	}
	var pending []models.CourseIntention
	for _, intention := range g.intentions {
		if intention.Status == models.IntentionStatusPending {
			pending = append(pending, intention)
		}
	}
	return pending, nil
}

func (g *memoryGateway) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("FindStudent"); err != nil {
		return nil, err
	}
	student, ok := g.students[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	copied := *student
	copied.CompletedCourses = append([]string(nil), student.CompletedCourses...)
	copied.EnrolledSections = append([]string(nil), student.EnrolledSections...)
	return &copied, nil
}

func (g *memoryGateway) FindCourse(ctx context.Context, code string) (*models.Course, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("FindCourse"); err != nil {
		return nil, err
	}
	course, ok := g.courses[code]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	copied := *course
	return &copied, nil
}

func (g *memoryGateway) FindCourseSections(ctx context.Context, courseCode, term string) ([]models.Section, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("FindCourseSections"); err != nil {
		return nil, err
	}
	stored := g.sections[models.CourseTermKey{CourseCode: courseCode, Term: term}]
	out := make([]models.Section, len(stored))
	copy(out, stored)
	return out, nil
}

func (g *memoryGateway) FindOrCreateOffering(ctx context.Context, courseCode, term string, defaults models.OfferingDefaults) (*models.Offering, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("FindOrCreateOffering"); err != nil {
		return nil, err
	}
	key := models.CourseTermKey{CourseCode: courseCode, Term: term}
	offering, ok := g.offerings[key]
	if !ok {
		offering = &models.Offering{
			ID:              models.OfferingID(courseCode, term),
			CourseCode:      courseCode,
			Term:            term,
			SeatsPerSection: defaults.SeatsPerSection,
			Status:          models.OfferingStatusUnscheduled,
		}
		g.offerings[key] = offering
	}
	copied := *offering
	return &copied, nil
}

func (g *memoryGateway) CreateSection(ctx context.Context, section *models.Section) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("CreateSection"); err != nil {
		return err
	}
	key := models.CourseTermKey{CourseCode: section.CourseCode, Term: section.Term}
	for _, existing := range g.sections[key] {
		if existing.Label == section.Label {
			return appErrors.Clone(appErrors.ErrConflict, "section exists")
		}
	}
	g.sections[key] = append(g.sections[key], *section)
	return nil
}

func (g *memoryGateway) UpdateSection(ctx context.Context, section *models.Section) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("UpdateSection"); err != nil {
		return err
	}
	key := models.CourseTermKey{CourseCode: section.CourseCode, Term: section.Term}
	for i, existing := range g.sections[key] {
		if existing.ID == section.ID {
			existing.AssignedTime = section.AssignedTime
			existing.InstructorID = section.InstructorID
			existing.RoomID = section.RoomID
			g.sections[key][i] = existing
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "section not found")
}

func (g *memoryGateway) UpdateOffering(ctx context.Context, offering *models.Offering) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("UpdateOffering"); err != nil {
		return err
	}
	copied := *offering
	g.offerings[models.CourseTermKey{CourseCode: offering.CourseCode, Term: offering.Term}] = &copied
	return nil
}

func (g *memoryGateway) ListScheduledOfferings(ctx context.Context, terms []string) ([]models.Offering, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListScheduledOfferings"); err != nil {
		return nil, err
	}
	var out []models.Offering
	for _, offering := range g.offerings {
		if offering.Status == models.OfferingStatusScheduled && len(offering.AssignedTime) > 0 && containsString(terms, offering.Term) {
			out = append(out, *offering)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *memoryGateway) FindInstructorsTeaching(ctx context.Context, courseCodes []string) ([]models.Instructor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("FindInstructorsTeaching"); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(courseCodes))
	for _, code := range courseCodes {
		wanted[code] = struct{}{}
	}
	var out []models.Instructor
	for _, instructor := range g.instructors {
		for _, code := range instructor.Teachable {
			if _, ok := wanted[code]; ok {
				out = append(out, instructor)
				break
			}
		}
	}
	return out, nil
}

func (g *memoryGateway) FindRoomsWithCapacity(ctx context.Context, minCapacity int) ([]models.Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("FindRoomsWithCapacity"); err != nil {
		return nil, err
	}
	var out []models.Room
	for _, room := range g.rooms {
		if room.Capacity >= minCapacity {
			out = append(out, room)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Capacity < out[j].Capacity })
	return out, nil
}

func (g *memoryGateway) UpdateIntentionStatus(ctx context.Context, id string, outcome models.IntentionOutcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("UpdateIntentionStatus"); err != nil {
		return err
	}
	for i := range g.intentions {
		intention := &g.intentions[i]
		if intention.ID != id {
			continue
		}
		if intention.Status != models.IntentionStatusPending {
			return appErrors.Clone(appErrors.ErrConflict, "intention already processed")
		}
		intention.Status = outcome.Status
		if outcome.Reason != "" {
			reason := outcome.Reason
			intention.Error = &reason
		}
		intention.SectionID = outcome.SectionID
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotFound, "intention not found")
}

func (g *memoryGateway) CommitEnrollment(ctx context.Context, commit models.EnrollmentCommit) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("CommitEnrollment"); err != nil {
		return false, err
	}
	enrollment := commit.Enrollment
	var section *models.Section
	for key := range g.sections {
		for i := range g.sections[key] {
			if g.sections[key][i].ID == enrollment.SectionID {
				section = &g.sections[key][i]
			}
		}
	}
	if section == nil {
		return false, appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	var intention *models.CourseIntention
	for i := range g.intentions {
		if g.intentions[i].ID == commit.IntentionID {
			intention = &g.intentions[i]
		}
	}
	if intention == nil || intention.Status != models.IntentionStatusPending {
		return false, appErrors.Clone(appErrors.ErrConflict, "intention already processed")
	}
	_, exists := g.enrollments[enrollment.ID]
	if !exists {
		if section.SeatsAvailable <= 0 {
			return false, appErrors.Clone(appErrors.ErrCapacityExhausted, "section full")
		}
		section.SeatsAvailable--
		g.enrollments[enrollment.ID] = enrollment
	}
	if student, ok := g.students[enrollment.StudentID]; ok {
		student.EnrolledSections = append(student.EnrolledSections, enrollment.SectionID)
	}
	sectionID := enrollment.SectionID
	intention.Status = models.IntentionStatusEnrolled
	intention.SectionID = &sectionID
	return !exists, nil
}

func (g *memoryGateway) seatsAvailable(courseCode, term string) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	var seats []int
	for _, section := range g.sections[models.CourseTermKey{CourseCode: courseCode, Term: term}] {
		seats = append(seats, section.SeatsAvailable)
	}
	return seats
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

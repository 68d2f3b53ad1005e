package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type capacityStore interface {
	FindCourse(ctx context.Context, code string) (*models.Course, error)
	FindOrCreateOffering(ctx context.Context, courseCode, term string, defaults models.OfferingDefaults) (*models.Offering, error)
	FindCourseSections(ctx context.Context, courseCode, term string) ([]models.Section, error)
	CreateSection(ctx context.Context, section *models.Section) error
}

// CourseTermPlan is the capacity decision for one course-term.
type CourseTermPlan struct {
	Group    CourseTermGroup
	Course   *models.Course
	Offering *models.Offering
	// Sections are ordered by label number.
	Sections []models.Section
	Created  int
	Failure  *GroupFailure
}

// SeatsPerSection returns the target size used for room capacity checks.
func (p CourseTermPlan) SeatsPerSection() int {
	if p.Offering != nil && p.Offering.SeatsPerSection > 0 {
		return p.Offering.SeatsPerSection
	}
	return models.DefaultSeatsPerSection
}

// CapacityPlanner sizes each course-term and creates missing sections.
type CapacityPlanner struct {
	store           capacityStore
	seatsPerSection int
	logger          *zap.Logger
}

// NewCapacityPlanner constructs the planner.
func NewCapacityPlanner(store capacityStore, seatsPerSection int, logger *zap.Logger) *CapacityPlanner {
	if seatsPerSection <= 0 {
		seatsPerSection = models.DefaultSeatsPerSection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityPlanner{store: store, seatsPerSection: seatsPerSection, logger: logger}
}

// SectionsNeeded returns floor(demand/seats)+1.
func SectionsNeeded(demand, seatsPerSection int) int {
	if seatsPerSection <= 0 {
		seatsPerSection = models.DefaultSeatsPerSection
	}
	return demand/seatsPerSection + 1
}

// Plan ensures the offering and enough sections exist for the group. Only
// store outages are returned as errors; other problems fail the group.
func (p *CapacityPlanner) Plan(ctx context.Context, group CourseTermGroup) (CourseTermPlan, error) {
	plan := CourseTermPlan{Group: group}
	key := group.Key

	course, err := p.store.FindCourse(ctx, key.CourseCode)
	if err != nil {
		if appErrors.IsFatal(err) {
			return plan, err
		}
		if errors.Is(err, appErrors.ErrNotFound) {
			plan.Failure = &GroupFailure{Kind: FailureNotFound, Reason: fmt.Sprintf("course %s not found", key.CourseCode)}
			return plan, nil
		}
		return p.fail(plan, "load course", err)
	}
	plan.Course = course

	offering, err := p.store.FindOrCreateOffering(ctx, key.CourseCode, key.Term, models.OfferingDefaults{SeatsPerSection: p.seatsPerSection})
	if err != nil {
		if appErrors.IsFatal(err) {
			return plan, err
		}
		return p.fail(plan, "prepare offering", err)
	}
	plan.Offering = offering

	sections, err := p.store.FindCourseSections(ctx, key.CourseCode, key.Term)
	if err != nil {
		if appErrors.IsFatal(err) {
			return plan, err
		}
		return p.fail(plan, "load sections", err)
	}
	sortSections(sections)

	needed := SectionsNeeded(group.Demand(), plan.SeatsPerSection())
	next := nextSectionNumber(sections)
	for len(sections) < needed {
		section := models.Section{
			ID:             models.SectionID(key.CourseCode, key.Term, next),
			CourseCode:     key.CourseCode,
			Label:          models.SectionLabel(next),
			Term:           key.Term,
			Prerequisites:  append([]string(nil), course.Prerequisites...),
			SeatsTotal:     plan.SeatsPerSection(),
			SeatsAvailable: plan.SeatsPerSection(),
		}
		if err := p.store.CreateSection(ctx, &section); err != nil {
			if appErrors.IsFatal(err) {
				return plan, err
			}
			plan.Sections = sections
			return p.fail(plan, "create section", err)
		}
		p.logger.Debug("section created", zap.String("section_id", section.ID), zap.Int("seats", section.SeatsTotal))
		sections = append(sections, section)
		plan.Created++
		next++
	}
	plan.Sections = sections
	return plan, nil
}

func (p *CapacityPlanner) fail(plan CourseTermPlan, op string, err error) (CourseTermPlan, error) {
	p.logger.Warn("capacity planning failed", zap.String("course_term", plan.Group.Key.String()), zap.String("op", op), zap.Error(err))
	plan.Failure = &GroupFailure{Kind: FailureScheduling, Reason: fmt.Sprintf("%s failed for %s %s", op, plan.Group.Key.CourseCode, plan.Group.Key.Term)}
	return plan, nil
}

// sectionNumber extracts n from a label of the form "S<n>"; unknown labels sort last.
func sectionNumber(label string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(label, "S"))
	if err != nil || !strings.HasPrefix(label, "S") {
		return math.MaxInt
	}
	return n
}

func sortSections(sections []models.Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		return sectionNumber(sections[i].Label) < sectionNumber(sections[j].Label)
	})
}

func nextSectionNumber(sections []models.Section) int {
	highest := 0
	for _, section := range sections {
		if n := sectionNumber(section.Label); n < math.MaxInt && n > highest {
			highest = n
		}
	}
	return highest + 1
}

package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DefaultSeatsPerSection applies when an offering does not specify a target size.
const DefaultSeatsPerSection = 30

// Course is a catalog entry; prerequisites list course codes.
type Course struct {
	Code          string         `db:"course_code" json:"course_code"`
	Name          string         `db:"course_name" json:"course_name"`
	DepartmentID  string         `db:"department_id" json:"department_id"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
}

// Section is one physical instance of a course-term with its own seat pool.
type Section struct {
	ID             string         `db:"id" json:"id"`
	CourseCode     string         `db:"course_code" json:"course_code"`
	Label          string         `db:"section_label" json:"section_label"`
	Term           string         `db:"term" json:"term"`
	Prerequisites  pq.StringArray `db:"prerequisites" json:"prerequisites"`
	SeatsTotal     int            `db:"seats_total" json:"seats_total"`
	SeatsAvailable int            `db:"seats_available" json:"seats_available"`
	AssignedTime   SlotCombo      `db:"assigned_time" json:"assigned_time,omitempty"`
	InstructorID   *string        `db:"instructor_id" json:"instructor_id,omitempty"`
	RoomID         *string        `db:"room_id" json:"room_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Scheduled reports whether the section has a published time, instructor and room.
func (s Section) Scheduled() bool {
	return len(s.AssignedTime) > 0 && s.InstructorID != nil && s.RoomID != nil
}

// SectionLabel returns the sequential label for the n-th section (1-based).
func SectionLabel(n int) string {
	return fmt.Sprintf("S%d", n)
}

// SectionID builds the stable identifier of the n-th section of a course-term.
func SectionID(courseCode, term string, n int) string {
	return fmt.Sprintf("%s-%s-%s", courseCode, term, SectionLabel(n))
}

// OfferingStatus captures whether a course-term has been placed on the timetable.
type OfferingStatus string

// Offering statuses.
const (
	OfferingStatusUnscheduled   OfferingStatus = "unscheduled"
	OfferingStatusScheduled     OfferingStatus = "scheduled"
	OfferingStatusUnschedulable OfferingStatus = "unschedulable"
)

// Offering anchors scheduling for a course-term; all its sections share one time, instructor and room.
type Offering struct {
	ID              string         `db:"id" json:"id"`
	CourseCode      string         `db:"course_code" json:"course_code"`
	Term            string         `db:"term" json:"term"`
	SeatsPerSection int            `db:"seats_per_section" json:"seats_per_section"`
	AssignedTime    SlotCombo      `db:"assigned_time" json:"assigned_time,omitempty"`
	InstructorID    *string        `db:"instructor_id" json:"instructor_id,omitempty"`
	RoomID          *string        `db:"room_id" json:"room_id,omitempty"`
	Status          OfferingStatus `db:"status" json:"status"`
	Diagnostic      *string        `db:"diagnostic" json:"diagnostic,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// OfferingDefaults seeds newly created offerings.
type OfferingDefaults struct {
	SeatsPerSection int
}

// OfferingID builds the identifier for a course-term offering.
func OfferingID(courseCode, term string) string {
	return courseCode + "-" + term
}

// TimetableEntry is a published section joined with its course name.
type TimetableEntry struct {
	SectionID    string    `db:"section_id" json:"section_id"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	CourseName   string    `db:"course_name" json:"course_name"`
	Label        string    `db:"section_label" json:"section_label"`
	Term         string    `db:"term" json:"term"`
	AssignedTime SlotCombo `db:"assigned_time" json:"assigned_time"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	RoomID       string    `db:"room_id" json:"room_id"`
	SeatsTotal   int       `db:"seats_total" json:"seats_total"`
	SeatsTaken   int       `db:"seats_taken" json:"seats_taken"`
}

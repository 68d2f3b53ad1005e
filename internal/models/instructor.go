package models

import "github.com/lib/pq"

// Instructor is read-only staff data used to test eligibility.
type Instructor struct {
	ID           string         `db:"instructor_id" json:"instructor_id"`
	FullName     string         `db:"full_name" json:"full_name"`
	DepartmentID string         `db:"department_id" json:"department_id"`
	Teachable    pq.StringArray `db:"courses_teachable" json:"courses_teachable"`
}

// CanTeach reports whether the instructor is eligible for the course.
// An empty department on the course accepts any department.
func (i Instructor) CanTeach(course Course) bool {
	if course.DepartmentID != "" && i.DepartmentID != "" && i.DepartmentID != course.DepartmentID {
		return false
	}
	for _, code := range i.Teachable {
		if code == course.Code {
			return true
		}
	}
	return false
}

// Room is a teaching location.
type Room struct {
	ID       string `db:"room_id" json:"room_id"`
	Name     string `db:"room_name" json:"room_name"`
	Capacity int    `db:"capacity" json:"capacity"`
}

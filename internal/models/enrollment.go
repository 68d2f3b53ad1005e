package models

import "time"

// Enrollment records one successful seat assignment.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	Grade      *string   `db:"grade" json:"grade,omitempty"`
}

// EnrollmentID derives the natural key of a student-section enrollment.
func EnrollmentID(studentID, sectionID string) string {
	return studentID + "-" + sectionID
}

// EnrollmentCommit is the unit written atomically when a student is seated.
type EnrollmentCommit struct {
	IntentionID string
	Enrollment  Enrollment
}

package models

import "time"

// IntentionStatus tracks an intention through a processing run.
type IntentionStatus string

// Intention statuses. Enrolled and failed are terminal.
const (
	IntentionStatusPending  IntentionStatus = "pending"
	IntentionStatusEnrolled IntentionStatus = "enrolled"
	IntentionStatusFailed   IntentionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s IntentionStatus) Terminal() bool {
	return s == IntentionStatusEnrolled || s == IntentionStatusFailed
}

// CourseIntention is a student's unprocessed request to take a course in a term.
type CourseIntention struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	CourseCode  string          `db:"course_code" json:"course_code"`
	Term        string          `db:"term" json:"term"`
	Status      IntentionStatus `db:"status" json:"status"`
	Error       *string         `db:"error" json:"error,omitempty"`
	SectionID   *string         `db:"section_id" json:"section_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// CourseTermKey identifies the unit of scheduling demand.
func (i CourseIntention) CourseTermKey() CourseTermKey {
	return CourseTermKey{CourseCode: i.CourseCode, Term: i.Term}
}

// CourseTermKey pairs a course code with an academic term.
type CourseTermKey struct {
	CourseCode string
	Term       string
}

// String renders "CODE/TERM".
func (k CourseTermKey) String() string {
	return k.CourseCode + "/" + k.Term
}

// IntentionOutcome is the terminal state recorded for one intention.
type IntentionOutcome struct {
	Status    IntentionStatus
	Reason    string
	SectionID *string
}

// IntentionFilter narrows intention listings.
type IntentionFilter struct {
	StudentID  string
	CourseCode string
	Term       string
	Status     IntentionStatus
	Page       int
	PageSize   int
}

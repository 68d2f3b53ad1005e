package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ProcessingTrigger names what started a run.
type ProcessingTrigger string

// Run triggers.
const (
	ProcessingTriggerAPI  ProcessingTrigger = "api"
	ProcessingTriggerCron ProcessingTrigger = "cron"
)

// ProcessingRunStatus represents run lifecycle phases.
type ProcessingRunStatus string

// Run statuses.
const (
	ProcessingRunStatusRunning   ProcessingRunStatus = "running"
	ProcessingRunStatusCompleted ProcessingRunStatus = "completed"
	ProcessingRunStatusFailed    ProcessingRunStatus = "failed"
)

// ProcessingRun is the audit record of a single processing pass.
type ProcessingRun struct {
	ID         string              `db:"id" json:"id"`
	Trigger    ProcessingTrigger   `db:"trigger" json:"trigger"`
	Status     ProcessingRunStatus `db:"status" json:"status"`
	StartedAt  time.Time           `db:"started_at" json:"started_at"`
	FinishedAt *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
	Report     types.JSONText      `db:"report" json:"report"`
}

// ProcessingReport aggregates the outcome of a run.
type ProcessingReport struct {
	RunID                  string   `json:"run_id,omitempty"`
	SuccessfulEnrollments  int      `json:"successful_enrollments"`
	FailedPrerequisites    int      `json:"failed_prerequisites"`
	FailedScheduling       int      `json:"failed_scheduling"`
	FailedCapacity         int      `json:"failed_capacity"`
	FailedNotFound         int      `json:"failed_not_found"`
	SectionsCreated        int      `json:"sections_created"`
	CourseTermsScheduled   int      `json:"course_terms_scheduled"`
	CourseTermsUnscheduled int      `json:"course_terms_unscheduled"`
	Details                []string `json:"details"`
}

// Processed returns the number of intentions that reached a terminal state.
func (r ProcessingReport) Processed() int {
	return r.SuccessfulEnrollments + r.FailedPrerequisites + r.FailedScheduling + r.FailedCapacity + r.FailedNotFound
}

// ProcessingRunFilter paginates run history.
type ProcessingRunFilter struct {
	Status   ProcessingRunStatus
	Page     int
	PageSize int
}

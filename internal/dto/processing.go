package dto

import "time"

// ProcessingAccepted acknowledges an asynchronous processing request.
type ProcessingAccepted struct {
	JobID    string    `json:"jobId"`
	Trigger  string    `json:"trigger"`
	Enqueued time.Time `json:"enqueuedAt"`
}

// ProcessingRunQuery filters run history.
type ProcessingRunQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=running completed failed"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

package dto

// SubmitIntentionRequest registers a student's wish to take a course in a term.
type SubmitIntentionRequest struct {
	StudentID  string `json:"studentId" validate:"required,max=64"`
	CourseCode string `json:"courseCode" validate:"required,max=32"`
	Term       string `json:"term" validate:"required,max=32"`
}

// IntentionQuery filters intention listings.
type IntentionQuery struct {
	StudentID  string `form:"studentId"`
	CourseCode string `form:"courseCode"`
	Term       string `form:"term"`
	Status     string `form:"status" validate:"omitempty,oneof=pending enrolled failed"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

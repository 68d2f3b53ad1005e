package dto

import "time"

// TimetableExportRequest asks for a rendered timetable of one term.
type TimetableExportRequest struct {
	Term   string `json:"term" validate:"required,max=32"`
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// TimetableExportResponse points to the rendered file.
type TimetableExportResponse struct {
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

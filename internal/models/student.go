package models

import "github.com/lib/pq"

// Student carries the academic history needed for prerequisite checks.
type Student struct {
	ID               string         `db:"student_id" json:"student_id"`
	FullName         string         `db:"full_name" json:"full_name"`
	ProgramID        string         `db:"program_id" json:"program_id"`
	CompletedCourses pq.StringArray `db:"completed_courses" json:"completed_courses"`
	EnrolledSections pq.StringArray `db:"enrolled_sections" json:"enrolled_sections"`
}

// MissingPrerequisites returns the prerequisites absent from the completed set.
func (s Student) MissingPrerequisites(prerequisites []string) []string {
	completed := make(map[string]struct{}, len(s.CompletedCourses))
	for _, code := range s.CompletedCourses {
		completed[code] = struct{}{}
	}
	var missing []string
	for _, code := range prerequisites {
		if _, ok := completed[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing
}

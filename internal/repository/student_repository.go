package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-intake-api/internal/models"
)

// StudentRepository reads and updates student academic records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT student_id, full_name, program_id, completed_courses, enrolled_sections FROM students WHERE student_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, classify("find student", err)
	}
	return &student, nil
}

// AppendSection adds a section to the student's enrolled set when not already present.
func (r *StudentRepository) AppendSection(ctx context.Context, exec sqlx.ExtContext, studentID, sectionID string) error {
	const query = `UPDATE students SET enrolled_sections = array_append(enrolled_sections, $2)
WHERE student_id = $1 AND NOT ($2 = ANY(enrolled_sections))`
	if _, err := r.exec(exec).ExecContext(ctx, query, studentID, sectionID); err != nil {
		return classify("append student section", err)
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-intake-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert stores an enrollment keyed by student and section. It reports false
// when the same enrollment already exists.
func (r *EnrollmentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = models.EnrollmentID(enrollment.StudentID, enrollment.SectionID)
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, section_id, enrolled_at, grade)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query, enrollment.ID, enrollment.StudentID, enrollment.SectionID, enrollment.EnrolledAt, enrollment.Grade)
	if err != nil {
		return false, classify("insert enrollment", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, classify("insert enrollment", err)
	}
	return affected > 0, nil
}

// ListBySection returns enrollments of a section ordered by enrollment time.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, enrolled_at, grade FROM enrollments WHERE section_id = $1 ORDER BY enrolled_at, id`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, sectionID); err != nil {
		return nil, classify("list section enrollments", err)
	}
	return enrollments, nil
}

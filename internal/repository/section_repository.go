package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-intake-api/internal/models"
)

const sectionColumns = `id, course_code, section_label, term, prerequisites, seats_total, seats_available, assigned_time, instructor_id, room_id, created_at, updated_at`

// SectionRepository persists course sections and their seat pools.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByCourseTerm returns sections of a course-term ordered by label number.
func (r *SectionRepository) ListByCourseTerm(ctx context.Context, courseCode, term string) ([]models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE course_code = $1 AND term = $2
ORDER BY LENGTH(section_label), section_label`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseCode, term); err != nil {
		return nil, classify("list sections", err)
	}
	return sections, nil
}

// Create inserts a new, unscheduled section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, course_code, section_label, term, prerequisites, seats_total, seats_available, created_at, updated_at)
VALUES (:id, :course_code, :section_label, :term, :prerequisites, :seats_total, :seats_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return classify("create section", err)
	}
	return nil
}

// UpdateAssignment writes the published time, instructor and room of a section.
func (r *SectionRepository) UpdateAssignment(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET assigned_time = :assigned_time, instructor_id = :instructor_id, room_id = :room_id,
updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return classify("update section", err)
	}
	return nil
}

// DecrementSeat takes one seat from a section. It reports false when the section is full.
func (r *SectionRepository) DecrementSeat(ctx context.Context, exec sqlx.ExtContext, sectionID string) (bool, error) {
	const query = `UPDATE sections SET seats_available = seats_available - 1, updated_at = $2
WHERE id = $1 AND seats_available > 0`
	res, err := r.exec(exec).ExecContext(ctx, query, sectionID, time.Now().UTC())
	if err != nil {
		return false, classify("decrement section seat", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, classify("decrement section seat", err)
	}
	return affected > 0, nil
}

// ListPublished returns scheduled sections of a term as timetable rows.
func (r *SectionRepository) ListPublished(ctx context.Context, term string) ([]models.TimetableEntry, error) {
	const query = `SELECT s.id AS section_id, s.course_code, c.course_name, s.section_label, s.term, s.assigned_time,
s.instructor_id, s.room_id, s.seats_total, s.seats_total - s.seats_available AS seats_taken
FROM sections s
JOIN courses c ON c.course_code = s.course_code
WHERE s.term = $1 AND s.assigned_time IS NOT NULL AND s.instructor_id IS NOT NULL AND s.room_id IS NOT NULL
ORDER BY s.course_code, LENGTH(s.section_label), s.section_label`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, term); err != nil {
		return nil, classify("list timetable", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-intake-api/internal/models"
)

const offeringColumns = `id, course_code, term, seats_per_section, assigned_time, instructor_id, room_id, status, diagnostic, created_at, updated_at`

// OfferingRepository persists course-term scheduling anchors.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// FindOrCreate returns the offering for a course-term, inserting one with the
// provided defaults when none exists yet.
func (r *OfferingRepository) FindOrCreate(ctx context.Context, courseCode, term string, defaults models.OfferingDefaults) (*models.Offering, error) {
	seats := defaults.SeatsPerSection
	if seats <= 0 {
		seats = models.DefaultSeatsPerSection
	}
	now := time.Now().UTC()
	const insert = `INSERT INTO offerings (id, course_code, term, seats_per_section, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) ON CONFLICT (course_code, term) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, models.OfferingID(courseCode, term), courseCode, term, seats, models.OfferingStatusUnscheduled, now); err != nil {
		return nil, classify("create offering", err)
	}

	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE course_code = $1 AND term = $2`
	var offering models.Offering
	if err := r.db.GetContext(ctx, &offering, query, courseCode, term); err != nil {
		return nil, classify("find offering", err)
	}
	return &offering, nil
}

// Update stores the scheduling outcome of an offering.
func (r *OfferingRepository) Update(ctx context.Context, offering *models.Offering) error {
	offering.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offerings SET assigned_time = :assigned_time, instructor_id = :instructor_id, room_id = :room_id,
status = :status, diagnostic = :diagnostic, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return classify("update offering", err)
	}
	return nil
}

// ListScheduled returns the offerings of the given terms that already have a
// published placement.
func (r *OfferingRepository) ListScheduled(ctx context.Context, terms []string) ([]models.Offering, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE status = $1 AND assigned_time IS NOT NULL AND term = ANY($2) ORDER BY id`
	var offerings []models.Offering
	if err := r.db.SelectContext(ctx, &offerings, query, models.OfferingStatusScheduled, pq.Array(terms)); err != nil {
		return nil, classify("list scheduled offerings", err)
	}
	return offerings, nil
}

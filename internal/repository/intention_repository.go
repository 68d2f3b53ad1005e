package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-intake-api/internal/models"
)

const intentionColumns = `id, student_id, course_code, term, status, error, section_id, created_at, processed_at`

// IntentionRepository persists course intentions.
type IntentionRepository struct {
	db *sqlx.DB
}

// NewIntentionRepository constructs the repository.
func NewIntentionRepository(db *sqlx.DB) *IntentionRepository {
	return &IntentionRepository{db: db}
}

func (r *IntentionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create stores a new pending intention.
func (r *IntentionRepository) Create(ctx context.Context, intention *models.CourseIntention) error {
	if intention.ID == "" {
		intention.ID = uuid.NewString()
	}
	if intention.Status == "" {
		intention.Status = models.IntentionStatusPending
	}
	if intention.CreatedAt.IsZero() {
		intention.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_intentions (id, student_id, course_code, term, status, created_at)
VALUES (:id, :student_id, :course_code, :term, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, intention); err != nil {
		return classify("create intention", err)
	}
	return nil
}

// ListPending returns pending intentions in submission order.
func (r *IntentionRepository) ListPending(ctx context.Context) ([]models.CourseIntention, error) {
	query := `SELECT ` + intentionColumns + ` FROM course_intentions WHERE status = $1 ORDER BY created_at, id`
	var intentions []models.CourseIntention
	if err := r.db.SelectContext(ctx, &intentions, query, models.IntentionStatusPending); err != nil {
		return nil, classify("list pending intentions", err)
	}
	return intentions, nil
}

// List returns intentions matching the filter along with the total count.
func (r *IntentionRepository) List(ctx context.Context, filter models.IntentionFilter) ([]models.CourseIntention, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("course_code = $%d", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM course_intentions%s ORDER BY created_at, id LIMIT %d OFFSET %d`, intentionColumns, clause, size, offset)
	var intentions []models.CourseIntention
	if err := r.db.SelectContext(ctx, &intentions, query, args...); err != nil {
		return nil, 0, classify("list intentions", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM course_intentions"+clause, args...); err != nil {
		return nil, 0, classify("count intentions", err)
	}
	return intentions, total, nil
}

// UpdateStatus moves a pending intention to its terminal state. Intentions
// that already left the pending state are not touched.
func (r *IntentionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, outcome models.IntentionOutcome) (bool, error) {
	var reason *string
	if outcome.Reason != "" {
		reason = &outcome.Reason
	}
	const query = `UPDATE course_intentions SET status = $2, error = $3, section_id = $4, processed_at = $5
WHERE id = $1 AND status = 'pending'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, outcome.Status, reason, outcome.SectionID, time.Now().UTC())
	if err != nil {
		return false, classify("update intention status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, classify("update intention status", err)
	}
	return affected > 0, nil
}

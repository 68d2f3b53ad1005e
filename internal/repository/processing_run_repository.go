package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/course-intake-api/internal/models"
)

const processingRunColumns = `id, trigger, status, started_at, finished_at, report`

// ProcessingRunRepository stores the audit trail of processing runs.
type ProcessingRunRepository struct {
	db *sqlx.DB
}

// NewProcessingRunRepository constructs the repository.
func NewProcessingRunRepository(db *sqlx.DB) *ProcessingRunRepository {
	return &ProcessingRunRepository{db: db}
}

// Create records the start of a run.
func (r *ProcessingRunRepository) Create(ctx context.Context, run *models.ProcessingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ProcessingRunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if len(run.Report) == 0 {
		run.Report = types.JSONText(`{}`)
	}
	const query = `INSERT INTO processing_runs (id, trigger, status, started_at, report)
VALUES (:id, :trigger, :status, :started_at, :report)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return classify("create processing run", err)
	}
	return nil
}

// Finish stores the final status and report of a run.
func (r *ProcessingRunRepository) Finish(ctx context.Context, id string, status models.ProcessingRunStatus, report types.JSONText) error {
	if len(report) == 0 {
		report = types.JSONText(`{}`)
	}
	const query = `UPDATE processing_runs SET status = $2, report = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, report, time.Now().UTC()); err != nil {
		return classify("finish processing run", err)
	}
	return nil
}

// FindByID returns a run by id.
func (r *ProcessingRunRepository) FindByID(ctx context.Context, id string) (*models.ProcessingRun, error) {
	query := `SELECT ` + processingRunColumns + ` FROM processing_runs WHERE id = $1`
	var run models.ProcessingRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, classify("find processing run", err)
	}
	return &run, nil
}

// Latest returns the most recently finished run.
func (r *ProcessingRunRepository) Latest(ctx context.Context) (*models.ProcessingRun, error) {
	query := `SELECT ` + processingRunColumns + ` FROM processing_runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC LIMIT 1`
	var run models.ProcessingRun
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		return nil, classify("find latest processing run", err)
	}
	return &run, nil
}

// List returns runs newest first along with the total count.
func (r *ProcessingRunRepository) List(ctx context.Context, filter models.ProcessingRunFilter) ([]models.ProcessingRun, int, error) {
	clause := ""
	var args []interface{}
	if filter.Status != "" {
		clause = " WHERE status = $1"
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT %s FROM processing_runs%s ORDER BY started_at DESC LIMIT %d OFFSET %d`, processingRunColumns, clause, size, offset)
	var runs []models.ProcessingRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, classify("list processing runs", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM processing_runs"+clause, args...); err != nil {
		return nil, 0, classify("count processing runs", err)
	}
	return runs, total, nil
}

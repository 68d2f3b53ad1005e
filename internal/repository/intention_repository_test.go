package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-intake-api/internal/models"
	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

var intentionRowColumns = []string{"id", "student_id", "course_code", "term", "status", "error", "section_id", "created_at", "processed_at"}

func TestIntentionRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIntentionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(intentionRowColumns).
		AddRow("int-1", "stu-1", "CS101", "2024F", "pending", nil, nil, now, nil).
		AddRow("int-2", "stu-2", "CS101", "2024F", "pending", nil, nil, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_intentions WHERE status = $1 ORDER BY created_at, id")).
		WithArgs(models.IntentionStatusPending).
		WillReturnRows(rows)

	intentions, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, intentions, 2)
	assert.Equal(t, "int-1", intentions[0].ID)
	assert.Equal(t, models.IntentionStatusPending, intentions[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntentionRepositoryListPendingStoreUnavailable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIntentionRepository(db)

	mock.ExpectQuery("FROM course_intentions").WillReturnError(&pq.Error{Code: "08006"})

	_, err := repo.ListPending(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestIntentionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIntentionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_intentions WHERE student_id = $1 AND status = $2 ORDER BY created_at, id LIMIT 10 OFFSET 10")).
		WithArgs("stu-1", models.IntentionStatusFailed).
		WillReturnRows(sqlmock.NewRows(intentionRowColumns).AddRow("int-9", "stu-1", "CS101", "2024F", "failed", "missing prerequisites", nil, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_intentions WHERE student_id = $1 AND status = $2")).
		WithArgs("stu-1", models.IntentionStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.IntentionFilter{StudentID: "stu-1", Status: models.IntentionStatusFailed, Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 11, total)
	require.NotNil(t, items[0].Error)
	assert.Equal(t, "missing prerequisites", *items[0].Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntentionRepositoryUpdateStatusOnlyTouchesPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIntentionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
		WithArgs("int-1", models.IntentionStatusFailed, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
		WithArgs("int-1", models.IntentionStatusFailed, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	outcome := models.IntentionOutcome{Status: models.IntentionStatusFailed, Reason: "student not found"}
	updated, err := repo.UpdateStatus(context.Background(), nil, "int-1", outcome)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdateStatus(context.Background(), nil, "int-1", outcome)
	require.NoError(t, err)
	assert.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntentionRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIntentionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_intentions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	intention := &models.CourseIntention{StudentID: "stu-1", CourseCode: "CS101", Term: "2024F"}
	require.NoError(t, repo.Create(context.Background(), intention))
	assert.NotEmpty(t, intention.ID)
	assert.Equal(t, models.IntentionStatusPending, intention.Status)
	assert.False(t, intention.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-intake-api/internal/models"
)

// InstructorRepository reads staff records.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// ListTeaching returns instructors able to teach at least one of the courses, ordered by id.
func (r *InstructorRepository) ListTeaching(ctx context.Context, courseCodes []string) ([]models.Instructor, error) {
	if len(courseCodes) == 0 {
		return nil, nil
	}
	const query = `SELECT instructor_id, full_name, department_id, courses_teachable FROM instructors
WHERE courses_teachable && $1 ORDER BY instructor_id`
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, pq.Array(courseCodes)); err != nil {
		return nil, classify("list instructors", err)
	}
	return instructors, nil
}

// RoomRepository reads teaching rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListWithCapacity returns rooms seating at least minCapacity, smallest first.
func (r *RoomRepository) ListWithCapacity(ctx context.Context, minCapacity int) ([]models.Room, error) {
	const query = `SELECT room_id, room_name, capacity FROM rooms WHERE capacity >= $1 ORDER BY capacity, room_id`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, minCapacity); err != nil {
		return nil, classify("list rooms", err)
	}
	return rooms, nil
}

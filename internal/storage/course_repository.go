package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
)

// CourseRepository handles registered course snapshot persistence
type CourseRepository struct {
	db *PostgresDB
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *PostgresDB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ReplaceAll swaps the account's registered courses for the new snapshot
// inside a single transaction.
func (r *CourseRepository) ReplaceAll(ctx context.Context, accountID string, courses []*models.Course) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM courses WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear courses: %w", err)
	}

	query := `
		INSERT INTO courses (
			id, account_id, course_code, course_name, credits, semester,
			synced_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	for _, course := range courses {
		if course.ID == "" {
			course.ID = uuid.New().String()
		}
		course.AccountID = accountID
		course.CreatedAt = now

		_, err := tx.Exec(ctx, query,
			course.ID,
			course.AccountID,
			course.CourseCode,
			course.CourseName,
			course.Credits,
			course.Semester,
			course.SyncedAt,
			course.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert course: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit courses replace: %w", err)
	}

	return nil
}

// FindByAccount retrieves the current registered courses
func (r *CourseRepository) FindByAccount(ctx context.Context, accountID string) ([]*models.Course, error) {
	query := `
		SELECT id, account_id, course_code, course_name, credits, semester,
		       synced_at, created_at
		FROM courses
		WHERE account_id = $1
		ORDER BY course_code
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		var course models.Course
		err := rows.Scan(
			&course.ID,
			&course.AccountID,
			&course.CourseCode,
			&course.CourseName,
			&course.Credits,
			&course.Semester,
			&course.SyncedAt,
			&course.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, &course)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}

	return courses, nil
}

// DeleteByAccount removes the account's registered courses
func (r *CourseRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM courses WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete courses: %w", err)
	}
	return nil
}

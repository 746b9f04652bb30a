package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
)

// TimetableRepository handles timetable snapshot persistence
type TimetableRepository struct {
	db *PostgresDB
}

// NewTimetableRepository creates a new timetable repository
func NewTimetableRepository(db *PostgresDB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ReplaceAll swaps the account's timetable for the new snapshot inside a
// single transaction, so readers never observe a partially written set.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, accountID string, entries []*models.TimetableEntry) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM timetables WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear timetable: %w", err)
	}

	query := `
		INSERT INTO timetables (
			id, account_id, day_of_week, lecture_date, start_time, end_time,
			course_code, course_name, faculty_name, room, section,
			synced_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now()
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		entry.AccountID = accountID
		entry.CreatedAt = now

		_, err := tx.Exec(ctx, query,
			entry.ID,
			entry.AccountID,
			entry.DayOfWeek,
			entry.LectureDate,
			entry.StartTime,
			entry.EndTime,
			entry.CourseCode,
			entry.CourseName,
			entry.FacultyName,
			entry.Room,
			entry.Section,
			entry.SyncedAt,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert timetable entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit timetable replace: %w", err)
	}

	return nil
}

// FindByAccount retrieves the current timetable ordered by day and start time
func (r *TimetableRepository) FindByAccount(ctx context.Context, accountID string) ([]*models.TimetableEntry, error) {
	query := `
		SELECT id, account_id, day_of_week, lecture_date, start_time, end_time,
		       course_code, course_name, faculty_name, room, section,
		       synced_at, created_at
		FROM timetables
		WHERE account_id = $1
		ORDER BY day_of_week, start_time
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timetable: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimetableEntry
	for rows.Next() {
		var entry models.TimetableEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.DayOfWeek,
			&entry.LectureDate,
			&entry.StartTime,
			&entry.EndTime,
			&entry.CourseCode,
			&entry.CourseName,
			&entry.FacultyName,
			&entry.Room,
			&entry.Section,
			&entry.SyncedAt,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timetable entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timetable entries: %w", err)
	}

	return entries, nil
}

// DeleteByAccount removes the account's timetable
func (r *TimetableRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM timetables WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete timetable entries: %w", err)
	}
	return nil
}

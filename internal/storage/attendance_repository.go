package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
)

// AttendanceRepository handles attendance snapshot persistence
type AttendanceRepository struct {
	db *PostgresDB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *PostgresDB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// BulkInsert appends one attendance snapshot. Every row must carry the same
// SyncedAt so FindLatest can recover the snapshot as a unit.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []*models.Attendance) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	query := `
		INSERT INTO attendances (
			id, account_id, course_code, course_name, total_lectures,
			total_present, total_absent, total_loa, total_on_duty,
			percentage, synced_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now()
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		record.CreatedAt = now

		_, err := tx.Exec(ctx, query,
			record.ID,
			record.AccountID,
			record.CourseCode,
			record.CourseName,
			record.TotalLectures,
			record.TotalPresent,
			record.TotalAbsent,
			record.TotalLOA,
			record.TotalOnDuty,
			record.Percentage,
			record.SyncedAt,
			record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert attendance record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit attendance insert: %w", err)
	}

	return nil
}

// FindLatest returns the newest attendance snapshot: all rows carrying the
// maximum synced_at for the account.
func (r *AttendanceRepository) FindLatest(ctx context.Context, accountID string) ([]*models.Attendance, error) {
	query := `
		SELECT id, account_id, course_code, course_name, total_lectures,
		       total_present, total_absent, total_loa, total_on_duty,
		       percentage, synced_at, created_at
		FROM attendances
		WHERE account_id = $1
		  AND synced_at = (SELECT MAX(synced_at) FROM attendances WHERE account_id = $1)
		ORDER BY course_code
	`

	return r.queryAttendances(ctx, query, accountID)
}

// FindHistory returns attendance rows for one course across snapshots,
// newest first.
func (r *AttendanceRepository) FindHistory(ctx context.Context, accountID, courseCode string, limit int) ([]*models.Attendance, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT id, account_id, course_code, course_name, total_lectures,
		       total_present, total_absent, total_loa, total_on_duty,
		       percentage, synced_at, created_at
		FROM attendances
		WHERE account_id = $1 AND course_code = $2
		ORDER BY synced_at DESC
		LIMIT $3
	`

	return r.queryAttendances(ctx, query, accountID, courseCode, limit)
}

// DeleteByAccount removes all attendance history for an account
func (r *AttendanceRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	query := `DELETE FROM attendances WHERE account_id = $1`

	_, err := r.db.Pool().Exec(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete attendance records: %w", err)
	}

	return nil
}

func (r *AttendanceRepository) queryAttendances(ctx context.Context, query string, args ...interface{}) ([]*models.Attendance, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	var records []*models.Attendance
	for rows.Next() {
		var record models.Attendance
		err := rows.Scan(
			&record.ID,
			&record.AccountID,
			&record.CourseCode,
			&record.CourseName,
			&record.TotalLectures,
			&record.TotalPresent,
			&record.TotalAbsent,
			&record.TotalLOA,
			&record.TotalOnDuty,
			&record.Percentage,
			&record.SyncedAt,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance records: %w", err)
	}

	return records, nil
}

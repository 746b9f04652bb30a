package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
)

// MarkRepository handles exam result snapshot persistence
type MarkRepository struct {
	db *PostgresDB
}

// NewMarkRepository creates a new mark repository
func NewMarkRepository(db *PostgresDB) *MarkRepository {
	return &MarkRepository{db: db}
}

// ReplaceAll swaps the account's marks for the new snapshot inside a
// single transaction.
func (r *MarkRepository) ReplaceAll(ctx context.Context, accountID string, marks []*models.Mark) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM marks WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear marks: %w", err)
	}

	query := `
		INSERT INTO marks (
			id, account_id, course_code, course_name, exam_type, max_marks,
			obtained_marks, grade, sgpa, cgpa, semester, synced_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now()
	for _, mark := range marks {
		if mark.ID == "" {
			mark.ID = uuid.New().String()
		}
		mark.AccountID = accountID
		mark.CreatedAt = now

		_, err := tx.Exec(ctx, query,
			mark.ID,
			mark.AccountID,
			mark.CourseCode,
			mark.CourseName,
			mark.ExamType,
			mark.MaxMarks,
			mark.ObtainedMarks,
			mark.Grade,
			mark.SGPA,
			mark.CGPA,
			mark.Semester,
			mark.SyncedAt,
			mark.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert mark: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit marks replace: %w", err)
	}

	return nil
}

// FindByAccount retrieves the current marks snapshot
func (r *MarkRepository) FindByAccount(ctx context.Context, accountID string) ([]*models.Mark, error) {
	query := `
		SELECT id, account_id, course_code, course_name, exam_type, max_marks,
		       obtained_marks, grade, sgpa, cgpa, semester, synced_at, created_at
		FROM marks
		WHERE account_id = $1
		ORDER BY semester, course_code
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query marks: %w", err)
	}
	defer rows.Close()

	var marks []*models.Mark
	for rows.Next() {
		var mark models.Mark
		err := rows.Scan(
			&mark.ID,
			&mark.AccountID,
			&mark.CourseCode,
			&mark.CourseName,
			&mark.ExamType,
			&mark.MaxMarks,
			&mark.ObtainedMarks,
			&mark.Grade,
			&mark.SGPA,
			&mark.CGPA,
			&mark.Semester,
			&mark.SyncedAt,
			&mark.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mark: %w", err)
		}
		marks = append(marks, &mark)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marks: %w", err)
	}

	return marks, nil
}

// DeleteByAccount removes the account's marks
func (r *MarkRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM marks WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete marks: %w", err)
	}
	return nil
}

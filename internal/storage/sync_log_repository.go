package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SyncLogRepository handles sync attempt log persistence
type SyncLogRepository struct {
	db *PostgresDB
}

// NewSyncLogRepository creates a new sync log repository
func NewSyncLogRepository(db *PostgresDB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create opens a new sync log row in the started state
func (r *SyncLogRepository) Create(ctx context.Context, accountID string) (*models.SyncLog, error) {
	log := &models.SyncLog{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Status:    models.SyncLogStarted,
		StartedAt: time.Now(),
	}

	query := `
		INSERT INTO sync_logs (id, account_id, status, started_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool().Exec(ctx, query, log.ID, log.AccountID, log.Status, log.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}

	return log, nil
}

// Complete transitions a started row to its terminal state
func (r *SyncLogRepository) Complete(ctx context.Context, id string, status models.SyncLogStatus, errorMessage *string, durationMs int64) error {
	query := `
		UPDATE sync_logs
		SET status = $2, error_message = $3, duration_ms = $4, completed_at = $5
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, id, status, errorMessage, durationMs, time.Now())
	if err != nil {
		return fmt.Errorf("failed to complete sync log: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("sync log not found: %s", id)
	}

	return nil
}

// ListByAccount retrieves recent sync logs for an account, newest first
func (r *SyncLogRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, account_id, status, error_message, duration_ms, started_at, completed_at
		FROM sync_logs
		WHERE account_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SyncLog
	for rows.Next() {
		var log models.SyncLog
		err := rows.Scan(
			&log.ID,
			&log.AccountID,
			&log.Status,
			&log.ErrorMessage,
			&log.DurationMs,
			&log.StartedAt,
			&log.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}

	return logs, nil
}

// CountConsecutiveFailures walks completed attempts newest-first and counts
// failures until the first success. Rows still in the started state are
// skipped so an in-flight attempt never breaks the streak.
func (r *SyncLogRepository) CountConsecutiveFailures(ctx context.Context, accountID string) (int, error) {
	query := `
		SELECT status
		FROM sync_logs
		WHERE account_id = $1 AND status <> $2
		ORDER BY started_at DESC
		LIMIT 50
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID, models.SyncLogStarted)
	if err != nil {
		return 0, fmt.Errorf("failed to count consecutive failures: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var status models.SyncLogStatus
		if err := rows.Scan(&status); err != nil {
			return 0, fmt.Errorf("failed to scan sync log status: %w", err)
		}
		if status != models.SyncLogFailed {
			break
		}
		count++
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating sync logs: %w", err)
	}

	return count, nil
}

// LastCompleted returns the most recent terminal sync log for an account
func (r *SyncLogRepository) LastCompleted(ctx context.Context, accountID string) (*models.SyncLog, error) {
	query := `
		SELECT id, account_id, status, error_message, duration_ms, started_at, completed_at
		FROM sync_logs
		WHERE account_id = $1 AND status <> $2
		ORDER BY started_at DESC
		LIMIT 1
	`

	var log models.SyncLog
	err := r.db.Pool().QueryRow(ctx, query, accountID, models.SyncLogStarted).Scan(
		&log.ID,
		&log.AccountID,
		&log.Status,
		&log.ErrorMessage,
		&log.DurationMs,
		&log.StartedAt,
		&log.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sync log: %w", err)
	}

	return &log, nil
}

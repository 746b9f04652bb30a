package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
)

// NotificationRepository handles notification persistence
type NotificationRepository struct {
	db *PostgresDB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *PostgresDB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	notification.CreatedAt = time.Now()

	var metadataJSON []byte
	var err error
	if notification.Metadata != nil {
		metadataJSON, err = json.Marshal(notification.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, body, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Body,
		metadataJSON,
		notification.IsRead,
		notification.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListByUser retrieves notifications for a user, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, type, title, body, metadata, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var notification models.Notification
		var metadataJSON []byte

		err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Body,
			&metadataJSON,
			&notification.IsRead,
			&notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &notification.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification metadata: %w", err)
			}
		}

		notifications = append(notifications, &notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// CountUnread returns the number of unread notifications for a user
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`

	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead marks one notification as read, scoped to its owner
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	query := `
		UPDATE notifications
		SET is_read = true
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %s", notificationID)
	}

	return nil
}

// MarkAllRead marks all of a user's notifications as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`

	_, err := r.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	return nil
}

package models

import (
	"time"
)

// NotificationType identifies the kind of notification
type NotificationType string

const (
	NotificationAttendanceAlert NotificationType = "attendance_alert"
)

// Notification is one user-facing notification row
type Notification struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"userId" db:"user_id"`
	Type      NotificationType       `json:"type" db:"type"`
	Title     string                 `json:"title" db:"title"`
	Body      string                 `json:"body" db:"body"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	IsRead    bool                   `json:"isRead" db:"is_read"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

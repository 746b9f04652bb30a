package models

import (
	"time"
)

// SyncLogStatus represents the state of one sync attempt row
type SyncLogStatus string

const (
	SyncLogStarted SyncLogStatus = "started"
	SyncLogSuccess SyncLogStatus = "success"
	SyncLogFailed  SyncLogStatus = "failed"
)

// SyncLog is one append-only row per sync attempt. A row is only ever
// mutated to transition from started to its terminal state.
type SyncLog struct {
	ID           string        `json:"id" db:"id"`
	AccountID    string        `json:"accountId" db:"account_id"`
	Status       SyncLogStatus `json:"status" db:"status"`
	ErrorMessage *string       `json:"errorMessage,omitempty" db:"error_message"`
	DurationMs   *int64        `json:"durationMs,omitempty" db:"duration_ms"`
	StartedAt    time.Time     `json:"startedAt" db:"started_at"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty" db:"completed_at"`
}

// Package models provides data models for the campus sync system.
package models

import (
	"time"
)

// SyncStatus represents the sync state machine of a linked account
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// LinkedAccount binds one application user to one college portal.
// Credentials are stored AES-256-GCM encrypted; EncryptionIV and
// EncryptionAuthTag each hold two hex values joined by ':' (username pair
// first, password pair second).
type LinkedAccount struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"userId" db:"user_id"`
	CollegeID         string     `json:"collegeId" db:"college_id"`
	EncryptedUsername string     `json:"-" db:"encrypted_username"`
	EncryptedPassword string     `json:"-" db:"encrypted_password"`
	EncryptionIV      string     `json:"-" db:"encryption_iv"`
	EncryptionAuthTag string     `json:"-" db:"encryption_auth_tag"`
	PortalUserID      *string    `json:"portalUserId,omitempty" db:"portal_user_id"`
	PortalToken       *string    `json:"-" db:"portal_token"`
	TokenExpiresAt    *time.Time `json:"tokenExpiresAt,omitempty" db:"token_expires_at"`
	SyncStatus        SyncStatus `json:"syncStatus" db:"sync_status"`
	SyncError         *string    `json:"syncError,omitempty" db:"sync_error"`
	LastSyncAt        *time.Time `json:"lastSyncAt,omitempty" db:"last_sync_at"`
	IsActive          bool       `json:"isActive" db:"is_active"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

// SyncUpdate carries the fields the coordinator writes back to a linked
// account row. Nil pointers leave the column untouched; ClearError resets
// sync_error to NULL.
type SyncUpdate struct {
	Status         SyncStatus
	LastSyncAt     *time.Time
	SyncError      *string
	ClearError     bool
	PortalToken    *string
	TokenExpiresAt *time.Time
	PortalUserID   *string
}

// College describes one institution and which adapter serves it
type College struct {
	ID                  string    `json:"id" db:"id"`
	Slug                string    `json:"slug" db:"slug"`
	Name                string    `json:"name" db:"name"`
	AdapterID           string    `json:"adapterId" db:"adapter_id"`
	AttendanceThreshold float64   `json:"attendanceThreshold" db:"attendance_threshold"`
	IsActive            bool      `json:"isActive" db:"is_active"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

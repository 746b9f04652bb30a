package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository handles linked account persistence
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, user_id, college_id, encrypted_username, encrypted_password,
	encryption_iv, encryption_auth_tag, portal_user_id, portal_token,
	token_expires_at, sync_status, sync_error, last_sync_at, is_active,
	created_at, updated_at
`

func scanAccount(row pgx.Row) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.CollegeID,
		&account.EncryptedUsername,
		&account.EncryptedPassword,
		&account.EncryptionIV,
		&account.EncryptionAuthTag,
		&account.PortalUserID,
		&account.PortalToken,
		&account.TokenExpiresAt,
		&account.SyncStatus,
		&account.SyncError,
		&account.LastSyncAt,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Create inserts a new linked account
func (r *AccountRepository) Create(ctx context.Context, account *models.LinkedAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.SyncStatus == "" {
		account.SyncStatus = models.SyncStatusPending
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.IsActive = true

	query := `
		INSERT INTO linked_accounts (
			id, user_id, college_id, encrypted_username, encrypted_password,
			encryption_iv, encryption_auth_tag, portal_user_id, portal_token,
			token_expires_at, sync_status, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		account.ID,
		account.UserID,
		account.CollegeID,
		account.EncryptedUsername,
		account.EncryptedPassword,
		account.EncryptionIV,
		account.EncryptionAuthTag,
		account.PortalUserID,
		account.PortalToken,
		account.TokenExpiresAt,
		account.SyncStatus,
		account.IsActive,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create linked account: %w", err)
	}

	return nil
}

// GetByID retrieves a linked account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts WHERE id = $1`

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	return account, nil
}

// GetByUserAndCollege retrieves a user's linked account for a college
func (r *AccountRepository) GetByUserAndCollege(ctx context.Context, userID, collegeID string) (*models.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts WHERE user_id = $1 AND college_id = $2`

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query, userID, collegeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	return account, nil
}

// ListByUser retrieves all active linked accounts for a user
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*models.LinkedAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM linked_accounts
		WHERE user_id = $1 AND is_active = true
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.LinkedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating linked accounts: %w", err)
	}

	return accounts, nil
}

// ListActive retrieves every active linked account. Used by the scheduler
// to enqueue the periodic sync sweep.
func (r *AccountRepository) ListActive(ctx context.Context) ([]*models.LinkedAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM linked_accounts
		WHERE is_active = true
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.LinkedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating linked accounts: %w", err)
	}

	return accounts, nil
}

// ClaimForSync transitions an account into the syncing state. The WHERE
// clause rejects the write when another worker already holds the account,
// so concurrent claims resolve to exactly one winner.
func (r *AccountRepository) ClaimForSync(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE linked_accounts
		SET sync_status = $2, updated_at = $3
		WHERE id = $1 AND sync_status <> $2
	`

	result, err := r.db.Pool().Exec(ctx, query, id, models.SyncStatusSyncing, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to claim account for sync: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// UpdateSync writes the coordinator's post-attempt fields back to the
// account row. Nil pointers leave their column untouched.
func (r *AccountRepository) UpdateSync(ctx context.Context, id string, update models.SyncUpdate) error {
	query := `
		UPDATE linked_accounts
		SET sync_status = $2,
		    last_sync_at = COALESCE($3, last_sync_at),
		    sync_error = CASE WHEN $4 THEN NULL ELSE COALESCE($5, sync_error) END,
		    portal_token = COALESCE($6, portal_token),
		    token_expires_at = COALESCE($7, token_expires_at),
		    portal_user_id = COALESCE($8, portal_user_id),
		    updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		id,
		update.Status,
		update.LastSyncAt,
		update.ClearError,
		update.SyncError,
		update.PortalToken,
		update.TokenExpiresAt,
		update.PortalUserID,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("linked account not found: %s", id)
	}

	return nil
}

// Deactivate soft-deletes a linked account. Historical records and sync
// logs are kept; the scheduler simply stops picking the account up.
func (r *AccountRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE linked_accounts
		SET is_active = false, updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate linked account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("linked account not found: %s", id)
	}

	return nil
}

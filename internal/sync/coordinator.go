package sync

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
	"github.com/campus-sync/internal/vault"
)

// AccountStore is the linked account persistence contract
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.LinkedAccount, error)
	ClaimForSync(ctx context.Context, id string) (bool, error)
	UpdateSync(ctx context.Context, id string, update models.SyncUpdate) error
	Deactivate(ctx context.Context, id string) error
}

// SyncLogStore is the sync attempt log contract
type SyncLogStore interface {
	Create(ctx context.Context, accountID string) (*models.SyncLog, error)
	Complete(ctx context.Context, id string, status models.SyncLogStatus, errorMessage *string, durationMs int64) error
	CountConsecutiveFailures(ctx context.Context, accountID string) (int, error)
}

// CollegeStore resolves the institution configuration row
type CollegeStore interface {
	GetByID(ctx context.Context, id string) (*models.College, error)
}

// CacheInvalidator drops derived read caches after a write
type CacheInvalidator interface {
	InvalidateAccount(ctx context.Context, accountID string) error
	InvalidateProfile(ctx context.Context, userID string) error
}

// Result summarizes one successful sync attempt
type Result struct {
	AccountID       string    `json:"accountId"`
	UserID          string    `json:"userId"`
	CollegeID       string    `json:"collegeId"`
	SyncedAt        time.Time `json:"syncedAt"`
	AttendanceCount int       `json:"attendanceCount"`
	TimetableCount  int       `json:"timetableCount"`
	MarkCount       int       `json:"markCount"`
	CourseCount     int       `json:"courseCount"`
	ProfileUpdated  bool      `json:"profileUpdated"`
	TokenRecovered  bool      `json:"tokenRecovered"`
	DurationMs      int64     `json:"durationMs"`
}

// Coordinator drives the sync state machine for one linked account at a
// time: pending -> syncing -> {success, failed}, with both terminal states
// re-enterable on the next attempt.
type Coordinator struct {
	accounts  AccountStore
	syncLogs  SyncLogStore
	colleges  CollegeStore
	registry  *adapter.Registry
	vault     *vault.Vault
	resolver  *TokenResolver
	fetcher   *Fetcher
	upserter  *Upserter
	cache     CacheInvalidator
}

// NewCoordinator creates a new sync coordinator
func NewCoordinator(
	accounts AccountStore,
	syncLogs SyncLogStore,
	colleges CollegeStore,
	registry *adapter.Registry,
	v *vault.Vault,
	upserter *Upserter,
	cache CacheInvalidator,
) *Coordinator {
	return &Coordinator{
		accounts: accounts,
		syncLogs: syncLogs,
		colleges: colleges,
		registry: registry,
		vault:    v,
		resolver: NewTokenResolver(),
		fetcher:  NewFetcher(),
		upserter: upserter,
		cache:    cache,
	}
}

// Execute runs one sync attempt for the account. The syncing-state claim is
// a conditional write, so concurrent attempts resolve to one winner and the
// loser is rejected with a sync-in-progress error.
func (c *Coordinator) Execute(ctx context.Context, accountID string) (*Result, error) {
	logger := logging.FromContext(ctx).WithField("accountId", accountID)
	ctx = logging.WithLogger(ctx, logger)

	account, err := c.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, errors.NewDatabaseError("load linked account", err)
	}
	if account == nil || !account.IsActive {
		return nil, errors.NewAccountNotFoundError(accountID)
	}
	if account.SyncStatus == models.SyncStatusSyncing {
		return nil, errors.NewSyncInProgressError(accountID)
	}

	// Decrypt before anything is written, so malformed stored metadata
	// never leaves a dangling started log or a stuck syncing status.
	creds, err := c.decryptCredentials(account)
	if err != nil {
		return nil, err
	}

	college, err := c.colleges.GetByID(ctx, account.CollegeID)
	if err != nil {
		return nil, errors.NewDatabaseError("load college", err)
	}
	if college == nil {
		return nil, errors.NewNotFoundError("college", account.CollegeID)
	}

	portalAdapter, err := c.registry.GetOrError(college.AdapterID)
	if err != nil {
		return nil, errors.NewSyncFailedError("No adapter for college", err)
	}

	claimed, err := c.accounts.ClaimForSync(ctx, accountID)
	if err != nil {
		return nil, errors.NewDatabaseError("claim account for sync", err)
	}
	if !claimed {
		return nil, errors.NewSyncInProgressError(accountID)
	}

	syncLog, err := c.syncLogs.Create(ctx, accountID)
	if err != nil {
		// Leave the account recoverable rather than stuck in syncing
		c.markFailed(ctx, account, nil, time.Now(), err)
		return nil, errors.NewDatabaseError("create sync log", err)
	}

	startedAt := syncLog.StartedAt
	syncedAt := time.Now()

	result, err := c.runAttempt(ctx, portalAdapter, account, creds, syncedAt)
	if err != nil {
		c.markFailed(ctx, account, syncLog, startedAt, err)
		return nil, attemptError(err)
	}

	update := models.SyncUpdate{
		Status:     models.SyncStatusSuccess,
		LastSyncAt: &syncedAt,
		ClearError: true,
	}
	if result.Auth != nil && result.Auth.Fresh {
		update.PortalToken = &result.Auth.Token
		update.TokenExpiresAt = result.Auth.ExpiresAt
		if result.Auth.PortalUserID != "" {
			update.PortalUserID = &result.Auth.PortalUserID
		}
	}
	if err := c.accounts.UpdateSync(ctx, accountID, update); err != nil {
		c.markFailed(ctx, account, syncLog, startedAt, err)
		return nil, attemptError(err)
	}

	durationMs := time.Since(startedAt).Milliseconds()
	if err := c.syncLogs.Complete(ctx, syncLog.ID, models.SyncLogSuccess, nil, durationMs); err != nil {
		logger.WithError(err).Error("Failed to complete sync log")
	}

	logger.WithFields(map[string]interface{}{
		"durationMs": durationMs,
		"recovered":  result.Recovered,
	}).Info("Sync completed")

	return &Result{
		AccountID:       account.ID,
		UserID:          account.UserID,
		CollegeID:       account.CollegeID,
		SyncedAt:        syncedAt,
		AttendanceCount: len(result.Attendance.Records),
		TimetableCount:  len(result.Timetable.Records),
		MarkCount:       len(result.Marks.Records),
		CourseCount:     len(result.Courses.Records),
		ProfileUpdated:  result.Profile != nil,
		TokenRecovered:  result.Recovered,
		DurationMs:      durationMs,
	}, nil
}

// runAttempt covers auth, fetch, persist and cache invalidation. Any error
// here fails the attempt as a unit.
func (c *Coordinator) runAttempt(ctx context.Context, portalAdapter adapter.CollegeAdapter, account *models.LinkedAccount, creds adapter.Credentials, syncedAt time.Time) (*FetchResult, error) {
	auth, err := c.resolver.Resolve(ctx, portalAdapter, account, creds)
	if err != nil {
		if stderrors.Is(err, adapter.ErrInvalidCredentials) {
			return nil, errors.NewInvalidCredentialsError(err)
		}
		return nil, err
	}

	result, err := c.fetcher.Fetch(ctx, portalAdapter, auth, creds)
	if err != nil {
		return nil, err
	}

	if err := c.upserter.Persist(ctx, account, result, syncedAt); err != nil {
		return nil, err
	}

	if err := c.cache.InvalidateAccount(ctx, account.ID); err != nil {
		return nil, err
	}
	if result.Profile != nil {
		if err := c.cache.InvalidateProfile(ctx, account.UserID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// decryptCredentials splits the composite IV/tag pairs and decrypts both
// secrets. The username pair is stored first, the password pair second.
func (c *Coordinator) decryptCredentials(account *models.LinkedAccount) (adapter.Credentials, error) {
	usernameIV, passwordIV, err := vault.SplitPair(account.EncryptionIV)
	if err != nil {
		return adapter.Credentials{}, errors.NewSyncFailedError("Invalid encryption metadata", err)
	}
	usernameTag, passwordTag, err := vault.SplitPair(account.EncryptionAuthTag)
	if err != nil {
		return adapter.Credentials{}, errors.NewSyncFailedError("Invalid encryption metadata", err)
	}

	username, err := c.vault.Decrypt(account.EncryptedUsername, usernameIV, usernameTag)
	if err != nil {
		return adapter.Credentials{}, errors.NewSyncFailedError("Invalid encryption metadata", err)
	}
	password, err := c.vault.Decrypt(account.EncryptedPassword, passwordIV, passwordTag)
	if err != nil {
		return adapter.Credentials{}, errors.NewSyncFailedError("Invalid encryption metadata", err)
	}

	return adapter.Credentials{Username: username, Password: password}, nil
}

// attemptError preserves an already categorized failure so retry and
// escalation decisions key off the original code, not a generic wrapper
func attemptError(err error) error {
	var catErr *errors.CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}
	return errors.NewSyncFailedError("Sync attempt failed", err)
}

// markFailed records a failed attempt on both the account row and, when one
// was opened, the sync log row.
func (c *Coordinator) markFailed(ctx context.Context, account *models.LinkedAccount, syncLog *models.SyncLog, startedAt time.Time, cause error) {
	logger := logging.FromContext(ctx).WithField("accountId", account.ID)

	message := cause.Error()
	update := models.SyncUpdate{
		Status:    models.SyncStatusFailed,
		SyncError: &message,
	}
	if err := c.accounts.UpdateSync(ctx, account.ID, update); err != nil {
		logger.WithError(err).Error("Failed to record sync failure on account")
	}

	if syncLog != nil {
		durationMs := time.Since(startedAt).Milliseconds()
		if err := c.syncLogs.Complete(ctx, syncLog.ID, models.SyncLogFailed, &message, durationMs); err != nil {
			logger.WithError(err).Error("Failed to complete sync log")
		}
	}

	logger.WithError(cause).Warn("Sync failed")
}

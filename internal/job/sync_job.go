package job

import (
	"context"
	"fmt"

	"github.com/campus-sync/internal/config"
	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/sync"
)

// SyncJobID derives the dedup identity for an account's sync job
func SyncJobID(accountID string) string {
	return fmt.Sprintf("sync-%s", accountID)
}

// NotificationJobID derives the dedup identity for an account's
// notification check job
func NotificationJobID(accountID string) string {
	return fmt.Sprintf("notify-%s", accountID)
}

// SyncService owns the two queues and wires the coordinator, the failure
// escalator and the notification trigger into job handlers.
type SyncService struct {
	coordinator *sync.Coordinator
	escalator   *sync.Escalator
	notifier    *sync.AttendanceNotifier

	syncQueue         *Queue
	notificationQueue *Queue
}

// NewSyncService creates the sync job service and its queues
func NewSyncService(
	coordinator *sync.Coordinator,
	escalator *sync.Escalator,
	notifier *sync.AttendanceNotifier,
	cfg *config.SyncConfig,
) *SyncService {
	s := &SyncService{
		coordinator: coordinator,
		escalator:   escalator,
		notifier:    notifier,
	}

	s.syncQueue = NewQueue("account-sync", s.handleSync, cfg.SyncWorkers, cfg.MaxAttempts, cfg.RetryDelays)
	s.notificationQueue = NewQueue("attendance-notification", s.handleNotification, cfg.NotificationWorkers, cfg.MaxAttempts, cfg.RetryDelays)

	return s
}

// Start begins processing on both queues
func (s *SyncService) Start(ctx context.Context) error {
	if err := s.syncQueue.Start(ctx); err != nil {
		return err
	}
	return s.notificationQueue.Start(ctx)
}

// Stop stops both queues
func (s *SyncService) Stop() error {
	if err := s.syncQueue.Stop(); err != nil {
		return err
	}
	return s.notificationQueue.Stop()
}

// EnqueueSync requests a sync for an account. Duplicate requests while a
// sync job is pending are collapsed into the existing job.
func (s *SyncService) EnqueueSync(accountID string) (*Job, bool) {
	return s.syncQueue.Enqueue(SyncJobID(accountID), accountID, "")
}

// EnqueueNotificationCheck requests a post-sync attendance evaluation
func (s *SyncService) EnqueueNotificationCheck(accountID, userID string) (*Job, bool) {
	return s.notificationQueue.Enqueue(NotificationJobID(accountID), accountID, userID)
}

// SyncJob returns the queue's view of an account's sync job, if any
func (s *SyncService) SyncJob(accountID string) (*Job, bool) {
	return s.syncQueue.Get(SyncJobID(accountID))
}

// handleSync runs one sync attempt. Failures re-raise so the queue's retry
// applies; the escalation policy runs after the failure is recorded, and a
// successful sync chains the notification check job.
func (s *SyncService) handleSync(ctx context.Context, j *Job) error {
	logger := logging.FromContext(ctx).WithField("accountId", j.AccountID)

	result, err := s.coordinator.Execute(ctx, j.AccountID)
	if err != nil {
		// A rejected reentrant attempt is not a sync failure
		if errors.IsCode(err, "SYNC_IN_PROGRESS") || errors.IsCode(err, "ACCOUNT_NOT_FOUND") {
			logger.WithError(err).Debug("Sync attempt skipped")
			return nil
		}

		if _, escErr := s.escalator.OnFailure(ctx, j.AccountID); escErr != nil {
			logger.WithError(escErr).Error("Failure escalation check failed")
		}

		return err
	}

	if _, created := s.EnqueueNotificationCheck(result.AccountID, result.UserID); created {
		logger.Debug("Notification check enqueued")
	}

	return nil
}

// handleNotification evaluates the attendance threshold for one account
func (s *SyncService) handleNotification(ctx context.Context, j *Job) error {
	_, err := s.notifier.Check(ctx, j.AccountID, j.UserID)
	return err
}

package sync

import (
	"context"

	"github.com/campus-sync/internal/logging"
)

// Escalator deactivates accounts that keep failing. It runs as a wrapping
// policy in the worker after the coordinator has already recorded the
// failure, never inside the attempt itself.
type Escalator struct {
	accounts  AccountStore
	syncLogs  SyncLogStore
	threshold int
}

// NewEscalator creates a new failure escalator
func NewEscalator(accounts AccountStore, syncLogs SyncLogStore, threshold int) *Escalator {
	return &Escalator{
		accounts:  accounts,
		syncLogs:  syncLogs,
		threshold: threshold,
	}
}

// OnFailure recomputes the consecutive-failure count from the sync log and
// deactivates the account once it reaches the threshold. Returns whether
// the account was deactivated. Any success row newer than prior failures
// resets the count to zero.
func (e *Escalator) OnFailure(ctx context.Context, accountID string) (bool, error) {
	logger := logging.FromContext(ctx).WithField("accountId", accountID)

	count, err := e.syncLogs.CountConsecutiveFailures(ctx, accountID)
	if err != nil {
		return false, err
	}

	if count < e.threshold {
		logger.WithFields(map[string]interface{}{
			"consecutiveFailures": count,
			"threshold":           e.threshold,
		}).Debug("Below escalation threshold")
		return false, nil
	}

	if err := e.accounts.Deactivate(ctx, accountID); err != nil {
		return false, err
	}

	logger.WithFields(map[string]interface{}{
		"consecutiveFailures": count,
		"threshold":           e.threshold,
	}).Warn("Account deactivated after repeated sync failures")

	return true, nil
}

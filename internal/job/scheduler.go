package job

import (
	"context"
	"time"

	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
)

// AccountLister enumerates the scheduler's candidate set
type AccountLister interface {
	ListActive(ctx context.Context) ([]*models.LinkedAccount, error)
}

// Scheduler periodically enqueues one sync job per active account. A
// failure for one account is logged and never aborts the sweep.
type Scheduler struct {
	accounts AccountLister
	syncs    *SyncService
	interval time.Duration
	stopCh   chan struct{}
}

// NewScheduler creates a scheduler sweeping at the given interval
func NewScheduler(accounts AccountLister, syncs *SyncService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 12 * time.Hour
	}

	return &Scheduler{
		accounts: accounts,
		syncs:    syncs,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the periodic sweep until the context is cancelled or Stop is
// called. The first sweep runs after one full interval, not at startup.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop halts the periodic sweep
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// Sweep enqueues a sync job for every active account
func (s *Scheduler) Sweep(ctx context.Context) {
	logger := logging.FromContext(ctx)

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("Scheduled sweep failed to list active accounts")
		return
	}

	enqueued := 0
	for _, account := range accounts {
		if _, created := s.syncs.EnqueueSync(account.ID); created {
			enqueued++
		}
	}

	logger.WithFields(map[string]interface{}{
		"accounts": len(accounts),
		"enqueued": enqueued,
	}).Info("Scheduled sync sweep completed")
}

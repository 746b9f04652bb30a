// Package job provides the in-process job queue, the sync and notification
// job handlers, and the recurring scheduler.
package job

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/retry"
)

// JobState tracks a job through the queue
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateDelayed   JobState = "delayed"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job is one unit of queued work. The ID is derived deterministically from
// the payload (one job identity per account), which is what dedup keys on.
type Job struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	UserID    string    `json:"userId"`
	State     JobState  `json:"state"`
	Attempts  int       `json:"attempts"`
	ReadyAt   time.Time `json:"readyAt"`
	CreatedAt time.Time `json:"createdAt"`
	LastError string    `json:"lastError,omitempty"`
}

// Terminal reports whether the job has finished for good
func (j *Job) Terminal() bool {
	return j.State == StateCompleted || j.State == StateFailed
}

// Handler executes one job attempt. Returning an error triggers the queue's
// own retry mechanism.
type Handler func(ctx context.Context, j *Job) error

// Queue is a dedup job queue with bounded concurrency and fixed-delay
// retry. Enqueueing an identity that is already waiting, delayed or active
// is a no-op; an identity held only by a terminal job purges the stale job
// first so the new request is not silently dropped.
type Queue struct {
	mu sync.RWMutex

	name    string
	pending *readyQueue
	jobs    map[string]*Job

	handler     Handler
	workerSem   chan struct{}
	maxAttempts int
	retryDelays []time.Duration

	stopCh  chan struct{}
	stopped bool
}

// NewQueue creates a queue. workers bounds concurrent handler executions;
// maxAttempts and retryDelays drive the retry schedule for failed attempts.
func NewQueue(name string, handler Handler, workers, maxAttempts int, retryDelays []time.Duration) *Queue {
	if workers <= 0 {
		workers = 5
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Queue{
		name:        name,
		pending:     &readyQueue{},
		jobs:        make(map[string]*Job),
		handler:     handler,
		workerSem:   make(chan struct{}, workers),
		maxAttempts: maxAttempts,
		retryDelays: retryDelays,
		stopCh:      make(chan struct{}),
		stopped:     true,
	}
}

// Start begins dispatching jobs
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if !q.stopped {
		q.mu.Unlock()
		return fmt.Errorf("queue %s already started", q.name)
	}
	q.stopped = false
	q.stopCh = make(chan struct{})
	heap.Init(q.pending)
	q.mu.Unlock()

	go q.dispatch(ctx)

	return nil
}

// Stop stops dispatching. Jobs already handed to workers run to completion.
func (q *Queue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return fmt.Errorf("queue %s already stopped", q.name)
	}

	close(q.stopCh)
	q.stopped = true

	return nil
}

// Enqueue adds a job for the given identity. Returns the job now holding
// the identity and whether this call created it.
func (q *Queue) Enqueue(jobID, accountID, userID string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.jobs[jobID]; ok {
		if !existing.Terminal() {
			return existing, false
		}
		// Purge the stale terminal job so this request is not dropped
		delete(q.jobs, jobID)
	}

	now := time.Now()
	j := &Job{
		ID:        jobID,
		AccountID: accountID,
		UserID:    userID,
		State:     StateWaiting,
		ReadyAt:   now,
		CreatedAt: now,
	}

	q.jobs[jobID] = j
	heap.Push(q.pending, j)

	return j, true
}

// Get returns a snapshot of the job currently holding an identity. A copy
// is returned because workers mutate job state under the queue lock.
func (q *Queue) Get(jobID string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return nil, false
	}
	clone := *j
	return &clone, true
}

// Size returns the number of jobs waiting or delayed
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.pending.Len()
}

// Active returns the number of jobs currently executing
func (q *Queue) Active() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	count := 0
	for _, j := range q.jobs {
		if j.State == StateActive {
			count++
		}
	}
	return count
}

// dispatch is the main loop: every tick, hand ready jobs to free workers
func (q *Queue) dispatch(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			for q.dispatchNext(ctx) {
			}
		}
	}
}

// dispatchNext starts at most one ready job. Returns false when nothing was
// started, either for lack of ready jobs or of free workers.
func (q *Queue) dispatchNext(ctx context.Context) bool {
	select {
	case q.workerSem <- struct{}{}:
	default:
		return false
	}

	q.mu.Lock()
	if q.pending.Len() == 0 || (*q.pending)[0].ReadyAt.After(time.Now()) {
		q.mu.Unlock()
		<-q.workerSem
		return false
	}

	j := heap.Pop(q.pending).(*Job)
	j.State = StateActive
	j.Attempts++
	q.mu.Unlock()

	go func() {
		defer func() {
			<-q.workerSem
		}()
		q.run(ctx, j)
	}()

	return true
}

// run executes one attempt and applies the retry policy on failure
func (q *Queue) run(ctx context.Context, j *Job) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"queue":   q.name,
		"jobId":   j.ID,
		"attempt": j.Attempts,
	})
	ctx = logging.WithLogger(ctx, logger)

	err := q.handler(ctx, j)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err == nil {
		j.State = StateCompleted
		j.LastError = ""
		logger.Debug("Job completed")
		return
	}

	j.LastError = err.Error()

	if j.Attempts >= q.maxAttempts || !errors.IsRetryable(err) {
		j.State = StateFailed
		logger.WithError(err).Error("Job failed permanently")
		return
	}

	delay := retry.NextDelay(&retry.RetryConfig{FixedDelays: q.retryDelays, InitialDelay: time.Minute, Multiplier: 2, MaxDelay: 15 * time.Minute}, j.Attempts)
	j.State = StateDelayed
	j.ReadyAt = time.Now().Add(delay)
	heap.Push(q.pending, j)

	logger.WithFields(map[string]interface{}{
		"delay": delay,
		"error": err.Error(),
	}).Warn("Job failed, scheduled for retry")
}

// readyQueue orders jobs by ReadyAt so delayed retries surface on time
type readyQueue []*Job

func (rq readyQueue) Len() int { return len(rq) }

func (rq readyQueue) Less(i, j int) bool {
	return rq[i].ReadyAt.Before(rq[j].ReadyAt)
}

func (rq readyQueue) Swap(i, j int) {
	rq[i], rq[j] = rq[j], rq[i]
}

func (rq *readyQueue) Push(x interface{}) {
	*rq = append(*rq, x.(*Job))
}

func (rq *readyQueue) Pop() interface{} {
	old := *rq
	n := len(old)
	j := old[n-1]
	old[n-1] = nil // avoid memory leak
	*rq = old[0 : n-1]
	return j
}

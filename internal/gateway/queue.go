package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/freightbot/internal/types"
)

// Queue manages per-user lanes with a global concurrency semaphore.
// Each user gets its own FIFO channel (lane) so that events from one user
// are processed strictly in arrival order, while the semaphore limits the
// total number of concurrent processors across all users.
type Queue struct {
	lanes     map[types.UserID]chan *Run
	semaphore *semaphore.Weighted
	processor func(*Run) error
	pending   atomic.Int64
	seq       atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all user lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.UserID]chan *Run),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to the user's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[run.UserID]
	if !exists {
		lane = make(chan *Run, 100)
		q.lanes[run.UserID] = lane
		q.wg.Add(1)
		go q.processLane(run.UserID, lane)
	}

	run.Seq = q.seq.Add(1)
	q.pending.Add(1)
	select {
	case lane <- run:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("queue full for user %s", run.UserID)
	}
}

// processLane drains a single user lane, acquiring a semaphore slot
// before running the processor synchronously. This ensures strict FIFO
// ordering per user while the semaphore limits cross-user parallelism.
func (q *Queue) processLane(userID types.UserID, lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				q.pending.Add(-1)
				return
			}
			if q.processor != nil {
				run.start(q.ctx)
				err := q.processor(run)
				run.finish(err)
				if err != nil {
					slog.Error("run failed", "run_id", string(run.ID), "user_id", string(userID), "error", err)
					if run.OnComplete != nil && run.Event != nil {
						run.OnComplete(&types.OutboundMessage{
							UserID: userID,
							ChatID: run.Event.ChatID,
							Text:   "Sorry, something went wrong processing your message.",
						})
					}
				} else {
					slog.Debug("run processed", "seq", run.Seq, "user_id", string(userID), "waited", run.Waited(), "elapsed", run.Elapsed())
				}
			}
			q.semaphore.Release(1)
			q.pending.Add(-1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until every enqueued run has been processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}

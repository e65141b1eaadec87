package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/user/freightbot/internal/types"
)

// Gateway turns inbound events into runs and enqueues them on the
// per-user queue.
type Gateway struct {
	Queue *Queue
	retry *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway with the given concurrency limit for simultaneous
// event processing across users.
func New(maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 4
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	return &Gateway{
		Queue: NewQueue(concurrency),
		retry: DefaultRetryPolicy(),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// Retry returns the gateway's retry policy.
func (g *Gateway) Retry() *RetryPolicy {
	return g.retry
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked with the reply produced by the run.
func WithOnComplete(fn func(*types.OutboundMessage)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound wraps the event in a Run and enqueues it on the user's lane.
func (g *Gateway) HandleInbound(_ context.Context, event *types.InboundEvent, opts ...RunOption) error {
	if event == nil || event.UserID == "" {
		return errors.New("inbound event without user id")
	}
	run := NewRun(event)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}

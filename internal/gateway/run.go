package gateway

import (
	"context"
	"time"

	"github.com/user/freightbot/internal/types"
)

// RunStatus is where a Run is in its lane.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run carries one inbound event through its user's lane.
type Run struct {
	ID     types.RunID
	Seq    uint64 // assigned by Queue.Enqueue, increasing across all lanes
	UserID types.UserID
	Event  *types.InboundEvent
	Ctx    context.Context
	Status RunStatus
	Error  error

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	OnComplete func(msg *types.OutboundMessage)
}

// NewRun wraps event in a queued Run.
func NewRun(event *types.InboundEvent) *Run {
	return &Run{
		ID:        types.NewRunID(),
		UserID:    event.UserID,
		Event:     event,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Context returns the run's context, or Background before it is dequeued.
func (r *Run) Context() context.Context {
	if r.Ctx == nil {
		return context.Background()
	}
	return r.Ctx
}

func (r *Run) start(ctx context.Context) {
	r.Ctx = ctx
	r.StartedAt = time.Now()
	r.Status = RunStatusRunning
}

func (r *Run) finish(err error) {
	r.EndedAt = time.Now()
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err
		return
	}
	r.Status = RunStatusComplete
}

// Waited is the time spent queued behind the user's earlier events and the
// concurrency limit. Zero until the run starts.
func (r *Run) Waited() time.Duration {
	if r.StartedAt.IsZero() || r.CreatedAt.IsZero() {
		return 0
	}
	return r.StartedAt.Sub(r.CreatedAt)
}

// Elapsed is the processing time. Zero until the run ends.
func (r *Run) Elapsed() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

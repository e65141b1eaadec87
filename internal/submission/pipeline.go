// Package submission persists finalized submissions and fans them out to
// operator targets.
package submission

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/freightbot/internal/gateway"
	"github.com/user/freightbot/internal/render"
	"github.com/user/freightbot/internal/state"
	"github.com/user/freightbot/internal/types"
)

// TargetResult is the outcome of one delivery attempt.
type TargetResult struct {
	Target string
	Err    error
}

// Report summarises what happened to one submission.
type Report struct {
	Persisted            bool
	FellBack             bool
	FallbackFile         string
	Attempts             int
	Successes            int
	Results              []TargetResult
	NotificationFallback bool
}

// Opts holds configuration options for the Pipeline.
type Opts struct {
	Store           types.RowAppender
	Targets         []string
	Retry           *gateway.RetryPolicy
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration
	Journal         *state.Journal
}

// Option defines a configuration option for the Pipeline.
type Option func(*Opts)

// WithStore sets the primary store. Without one every submission goes to
// the fallback log.
func WithStore(s types.RowAppender) Option {
	return func(o *Opts) { o.Store = s }
}

func WithTargets(targets []string) Option {
	return func(o *Opts) { o.Targets = append([]string(nil), targets...) }
}

// WithJournal records every submission outcome in j.
func WithJournal(j *state.Journal) Option {
	return func(o *Opts) { o.Journal = j }
}

// WithRetryPolicy sets the retry policy for primary store writes.
func WithRetryPolicy(p *gateway.RetryPolicy) Option {
	return func(o *Opts) { o.Retry = p }
}

func WithTimeouts(store, delivery time.Duration) Option {
	return func(o *Opts) {
		o.StoreTimeout = store
		o.DeliveryTimeout = delivery
	}
}

// Pipeline persists a submission once and notifies every operator target.
type Pipeline struct {
	render   *render.Renderer
	notifier types.Notifier
	fallback *state.FallbackLog
	opts     Opts
	now      func() time.Time
}

// New creates a Pipeline.
func New(r *render.Renderer, notifier types.Notifier, fallback *state.FallbackLog, opts ...Option) *Pipeline {
	cfg := Opts{
		Retry:           &gateway.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, Multiplier: 2, MaxDelay: 10 * time.Second},
		StoreTimeout:    15 * time.Second,
		DeliveryTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pipeline{
		render:   r,
		notifier: notifier,
		fallback: fallback,
		opts:     cfg,
		now:      time.Now,
	}
}

// Targets returns the configured operator targets.
func (p *Pipeline) Targets() []string {
	return append([]string(nil), p.opts.Targets...)
}

// HasStore reports whether a primary store is configured.
func (p *Pipeline) HasStore() bool {
	return p.opts.Store != nil
}

// Submit persists sub and then notifies operators. Both steps always run;
// failures are logged and reflected in the report.
func (p *Pipeline) Submit(ctx context.Context, sub *types.Submission) Report {
	var rep Report
	p.persist(ctx, sub, &rep)
	p.notify(ctx, sub, &rep)
	p.record(ctx, sub, &rep)
	return rep
}

func (p *Pipeline) record(ctx context.Context, sub *types.Submission, rep *Report) {
	if p.opts.Journal == nil {
		return
	}
	entry := &state.JournalEntry{
		SubmissionID:         sub.ID,
		Kind:                 sub.Kind,
		UserID:               sub.UserID,
		At:                   sub.SubmittedAt,
		Persisted:            rep.Persisted,
		FallbackFile:         rep.FallbackFile,
		Attempts:             rep.Attempts,
		Successes:            rep.Successes,
		NotificationFallback: rep.NotificationFallback,
	}
	if p.opts.Store != nil {
		entry.Store = p.opts.Store.Name()
	}
	if err := p.opts.Journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("journal write failed", "submission_id", string(sub.ID), "error", err)
	}
}

func (p *Pipeline) persist(ctx context.Context, sub *types.Submission, rep *Report) {
	if store := p.opts.Store; store != nil {
		row := p.render.Row(sub)
		err := p.opts.Retry.ExecuteContext(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, p.opts.StoreTimeout)
			defer cancel()
			return store.AppendRow(ctx, row)
		})
		if err == nil {
			rep.Persisted = true
			slog.Info("submission persisted", "submission_id", string(sub.ID), "store", store.Name())
			return
		}
		slog.Warn("primary store write failed", "submission_id", string(sub.ID), "store", store.Name(), "error", err)
	}

	name, err := p.fallback.WriteSubmission(context.WithoutCancel(ctx), sub.SubmittedAt, p.render.SubmissionBlock(sub))
	if err != nil {
		slog.Error("fallback write failed", "submission_id", string(sub.ID), "error", err)
		return
	}
	rep.FellBack = true
	rep.FallbackFile = name
	slog.Info("submission written to fallback log", "submission_id", string(sub.ID), "file", name)
}

func (p *Pipeline) notify(ctx context.Context, sub *types.Submission, rep *Report) {
	n := p.render.Notification(sub)
	targets := p.opts.Targets

	rep.Results = make([]TargetResult, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, p.opts.DeliveryTimeout)
			defer cancel()
			err := p.notifier.Deliver(dctx, target, n)
			if err != nil {
				slog.Warn("operator delivery failed", "submission_id", string(sub.ID), "target", target, "error", err)
			} else {
				slog.Info("operator notified", "submission_id", string(sub.ID), "target", target)
			}
			rep.Results[i] = TargetResult{Target: target, Err: err}
			return nil
		})
	}
	g.Wait()

	rep.Attempts = len(targets)
	for _, r := range rep.Results {
		if r.Err == nil {
			rep.Successes++
		}
	}
	if rep.Successes > 0 {
		return
	}

	if len(targets) == 0 {
		slog.Warn("no operator targets configured", "submission_id", string(sub.ID))
	} else {
		slog.Warn("no operator received the notification", "submission_id", string(sub.ID), "attempts", rep.Attempts)
	}
	if err := p.fallback.WriteNotification(context.WithoutCancel(ctx), p.render.NotificationBlock(p.now(), n)); err != nil {
		slog.Error("notification fallback write failed", "submission_id", string(sub.ID), "error", err)
		return
	}
	rep.NotificationFallback = true
}

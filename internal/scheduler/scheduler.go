// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/freightbot/internal/types"
)

// Job is a named piece of housekeeping run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

// Scheduler runs housekeeping jobs such as the idle session sweep.
type Scheduler struct {
	jobs   []Job
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler for the given jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		cron: cron.New(cron.WithParser(cronParser)),
	}
}

// Validate checks a cron expression.
func Validate(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// Start registers every job with a schedule and starts the cron ticker.
// Jobs with invalid schedules are logged and skipped. It returns the number
// of registered jobs.
func (s *Scheduler) Start(ctx context.Context) int {
	s.ctx, s.cancel = context.WithCancel(ctx)

	registered := 0
	for _, job := range s.jobs {
		if job.Schedule == "" || job.Run == nil {
			continue
		}
		job := job
		_, err := s.cron.AddFunc(job.Schedule, func() {
			slog.Debug("cron firing job", "name", job.Name)
			job.Run(s.ctx)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", job.Name, "schedule", job.Schedule, "error", err)
			continue
		}
		registered++
		slog.Info("scheduled job", "name", job.Name, "schedule", job.Schedule)
	}

	s.cron.Start()
	return registered
}

// Stop stops the cron ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}

// Sweeper removes idle sessions.
type Sweeper interface {
	Sweep(idleFor time.Duration) []types.UserID
}

// SweepJob returns a job that drops sessions idle longer than idleFor.
func SweepJob(schedule string, sessions Sweeper, idleFor time.Duration) Job {
	return Job{
		Name:     "session-sweep",
		Schedule: schedule,
		Run: func(ctx context.Context) {
			removed := sessions.Sweep(idleFor)
			if len(removed) > 0 {
				slog.Info("idle sessions removed", "count", len(removed), "idle_for", idleFor)
			}
		},
	}
}

// StoreCheckJob returns a job that pings the primary store and logs when
// its availability changes.
func StoreCheckJob(schedule string, store types.RowAppender) Job {
	healthy := true
	return Job{
		Name:     "store-check",
		Schedule: schedule,
		Run: func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			err := store.Ping(ctx)
			switch {
			case err != nil && healthy:
				slog.Warn("primary store unavailable", "store", store.Name(), "error", err)
			case err == nil && !healthy:
				slog.Info("primary store available again", "store", store.Name())
			}
			healthy = err == nil
		},
	}
}

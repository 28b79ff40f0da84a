// Package schedule runs the process's background tasks (queue tick,
// retention sweep) on cron specs with an overlap guard per task.
package schedule

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one schedulable background task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function into a Job.
func JobFunc(name string, fn func(ctx context.Context) error) Job {
	return &funcJob{name: name, fn: fn}
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// CronScheduler schedules jobs with seconds-precision cron specs.
// Started at process init, stopped at shutdown; Stop waits for running
// jobs to finish.
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	logger  *slog.Logger
	ctx     context.Context
}

func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// AddJob registers a job under a six-field cron spec (seconds first).
func (c *CronScheduler) AddJob(job Job, spec string) error {
	entryID, err := c.cron.AddFunc(spec, c.wrap(job))
	if err != nil {
		c.logger.Error("schedule job failed", "job", job.Name(), "spec", spec, "error", err)
		return err
	}
	c.entries[job.Name()] = entryID
	c.logger.Info("job scheduled", "job", job.Name(), "spec", spec)
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// wrap adds the overlap guard: a tick is skipped while the previous run
// of the same job is still in flight.
func (c *CronScheduler) wrap(job Job) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			c.logger.Debug("job skipped: still running", "job", job.Name())
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			c.logger.Error("job finished", "job", job.Name(),
				"error", err, "duration", time.Since(start))
			return
		}
		c.logger.Debug("job finished", "job", job.Name(), "duration", time.Since(start))
	}
}

// Package queue serializes ingestion work: jobs enter a FIFO and at most
// one is processed at a time system-wide, capping load on the embedding
// and generation backends.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRetention is how long terminal jobs are kept before the
	// sweep purges them.
	DefaultRetention = 24 * time.Hour

	// interJobDelay separates consecutive jobs so one failure cannot
	// hot-loop the worker.
	interJobDelay = 100 * time.Millisecond
)

var ErrEmptySubmission = errors.New("submission has no data")

// Processor performs the actual ingestion work for one submission.
// report publishes coarse progress (0-100) back onto the job record.
type Processor interface {
	Process(ctx context.Context, sub Submission, report func(progress int)) (*Result, error)
}

// Queue accepts ingestion jobs and guarantees single-worker processing.
// The worker runs eagerly on submission and is additionally kicked by a
// periodic tick as a safety net.
type Queue struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	fifo      []string
	processor Processor
	retention time.Duration
	logger    *slog.Logger

	processing atomic.Bool
	baseCtx    context.Context
}

// New creates a queue. retention <= 0 falls back to DefaultRetention.
func New(processor Processor, retention time.Duration, logger *slog.Logger) *Queue {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:      make(map[string]*Job),
		processor: processor,
		retention: retention,
		logger:    logger,
		baseCtx:   context.Background(),
	}
}

// Start binds the queue's workers to a process-lifetime context. Workers
// spawned after ctx is done exit immediately.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.baseCtx = ctx
	q.mu.Unlock()
}

// Submit accepts a job and returns its id immediately; the outcome is
// visible only through job status polling. A worker is kicked eagerly.
func (q *Queue) Submit(sub Submission) (string, error) {
	if len(sub.Data) == 0 {
		return "", ErrEmptySubmission
	}
	if sub.CorpusID == "" {
		return "", fmt.Errorf("corpus target is required")
	}

	job := &Job{
		ID:           newJobID(sub.CorpusID),
		CorpusTarget: sub.CorpusID,
		FileName:     sub.FileName,
		Submission:   sub,
		Status:       StatusQueued,
		CreatedAt:    time.Now(),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.fifo = append(q.fifo, job.ID)
	ctx := q.baseCtx
	q.mu.Unlock()

	q.logger.Info("job queued", "job", job.ID, "corpus", sub.CorpusID, "file", sub.FileName)
	go q.Drain(ctx)
	return job.ID, nil
}

// Drain processes queued jobs one after another until the FIFO is empty.
// A processing-in-progress flag keeps concurrent drains (eager kicks and
// the periodic tick) from overlapping.
func (q *Queue) Drain(ctx context.Context) {
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)

	for {
		if ctx.Err() != nil {
			return
		}
		job := q.dequeue()
		if job == nil {
			return
		}
		q.runJob(ctx, job)

		// A failed job must not block the next one; continue after a
		// short delay.
		select {
		case <-time.After(interJobDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) dequeue() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.fifo) > 0 {
		id := q.fifo[0]
		q.fifo = q.fifo[1:]
		job, ok := q.jobs[id]
		if !ok || job.Status != StatusQueued {
			continue // Swept or already handled
		}
		now := time.Now()
		job.Status = StatusProcessing
		job.StartedAt = &now
		job.Progress = 10
		return job
	}
	return nil
}

func (q *Queue) runJob(ctx context.Context, job *Job) {
	q.logger.Info("job started", "job", job.ID, "corpus", job.CorpusTarget)

	report := func(progress int) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if job.Status != StatusProcessing {
			return
		}
		if progress < 0 {
			progress = 0
		}
		if progress > 99 {
			progress = 99
		}
		job.Progress = progress
	}

	result, err := q.processor.Process(ctx, job.Submission, report)

	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		job.Progress = 0
		q.logger.Warn("job failed", "job", job.ID, "corpus", job.CorpusTarget, "error", err)
		return
	}
	job.Status = StatusCompleted
	job.Progress = 100
	job.Result = result
	q.logger.Info("job completed", "job", job.ID, "corpus", job.CorpusTarget,
		"chunks", result.ChunkCount, "cid", result.SnapshotCID)
}

// GetJob returns a copy of the job, if retained.
func (q *Queue) GetJob(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return cloneJob(job), true
}

// GetJobsForTarget returns the retained jobs for a corpus, newest first.
func (q *Queue) GetJobsForTarget(corpusID string) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for _, job := range q.jobs {
		if job.CorpusTarget == corpusID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stats counts retained jobs per status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, job := range q.jobs {
		switch job.Status {
		case StatusQueued:
			s.Queued++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Sweep purges terminal jobs older than the retention window and returns
// how many were removed.
func (q *Queue) Sweep() int {
	cutoff := time.Now().Add(-q.retention)
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, job := range q.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		q.logger.Info("job retention sweep", "removed", removed, "retained", len(q.jobs))
	}
	return removed
}

// newJobID derives an id from the target plus timestamp plus a random
// suffix, so concurrent submissions against one corpus cannot collide.
func newJobID(corpusID string) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%d-%s", corpusID, time.Now().UnixMilli(), suffix)
}

func cloneJob(job *Job) Job {
	out := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		out.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	if job.Result != nil {
		r := *job.Result
		out.Result = &r
	}
	return out
}

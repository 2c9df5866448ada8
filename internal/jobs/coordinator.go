// Package jobs runs summarization work asynchronously on a worker pool with
// pollable job state.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/summary"
)

// Summarizer is the unit of work a job executes.
type Summarizer interface {
	Summarize(ctx context.Context, period models.Period, start, end time.Time) (string, error)
}

// Coordinator accepts summarization requests, runs them on a fixed worker
// pool, and tracks job state in memory. Jobs do not survive a restart.
type Coordinator struct {
	summarizer Summarizer
	queue      chan string
	workers    int
	logger     *zap.Logger // optional
	now        func() time.Time

	mu     sync.RWMutex
	jobs   map[string]*models.Job
	ranges map[string]jobRange

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// jobRange keeps the computed range as time values so workers do not have to
// re-parse the wire-format strings on the job.
type jobRange struct {
	start time.Time
	end   time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets a logger for job lifecycle events.
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the time source used to compute date ranges.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator with the given worker count and queue
// capacity. Call Start before submitting.
func NewCoordinator(summarizer Summarizer, workers, queueSize int, opts ...CoordinatorOption) *Coordinator {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &Coordinator{
		summarizer: summarizer,
		queue:      make(chan string, queueSize),
		workers:    workers,
		now:        time.Now,
		jobs:       make(map[string]*models.Job),
		ranges:     make(map[string]jobRange),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the worker pool. Workers run until Stop is called or ctx is
// cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	if c.logger != nil {
		c.logger.Info("job workers started", zap.Int("workers", c.workers))
	}
}

// Stop shuts the pool down and waits for in-flight jobs to finish. Queued
// jobs that no worker picked up stay pending.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Submit validates the period, creates a pending job for the period's current
// date range, enqueues it, and returns the job ID without waiting for
// execution. An invalid period is rejected before any job exists. A full
// queue is an external-capacity error.
func (c *Coordinator) Submit(periodToken string) (string, error) {
	period, err := models.ParsePeriod(periodToken)
	if err != nil {
		return "", err
	}
	start, end, err := summary.DateRange(period, c.now())
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	job := &models.Job{
		ID:        uuid.New().String(),
		Period:    period,
		StartDate: summary.FormatDateTime(start),
		EndDate:   summary.FormatDateTime(end),
		State:     models.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	c.ranges[job.ID] = jobRange{start: start, end: end}
	c.mu.Unlock()

	select {
	case c.queue <- job.ID:
	default:
		c.mu.Lock()
		delete(c.jobs, job.ID)
		delete(c.ranges, job.ID)
		c.mu.Unlock()
		return "", apperr.E(apperr.ErrExternal, "job queue is full")
	}

	if c.logger != nil {
		c.logger.Info("job submitted",
			zap.String("job_id", job.ID),
			zap.String("period", string(period)))
	}
	return job.ID, nil
}

// Poll returns a snapshot of the job. The returned value is a copy; callers
// cannot affect coordinator state through it.
func (c *Coordinator) Poll(id string) (*models.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, apperr.E(apperr.ErrNotFound, "job %s", id)
	}
	return job.Clone(), nil
}

func (c *Coordinator) worker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.queue:
			c.run(ctx, id)
		}
	}
}

func (c *Coordinator) run(ctx context.Context, id string) {
	job, ok := c.transition(id, models.JobPending, models.JobRunning, "", nil)
	if !ok {
		return
	}
	c.mu.RLock()
	r := c.ranges[id]
	c.mu.RUnlock()

	text, err := c.summarizer.Summarize(ctx, job.Period, r.start, r.end)
	if err != nil {
		c.transition(id, models.JobRunning, models.JobFailed, "", &models.JobError{
			Kind:    apperr.Kind(err),
			Message: err.Error(),
		})
		if c.logger != nil {
			c.logger.Warn("job failed", zap.String("job_id", id), zap.Error(err))
		}
		return
	}
	c.transition(id, models.JobRunning, models.JobSucceeded, text, nil)
	if c.logger != nil {
		c.logger.Info("job succeeded", zap.String("job_id", id))
	}
}

// transition moves a job from one state to the next under the lock. Terminal
// states are absorbing; a job not in the expected state is left untouched.
func (c *Coordinator) transition(id string, from, to models.JobState, result string, jobErr *models.JobError) (*models.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok || job.State != from || job.State.Terminal() {
		return nil, false
	}
	job.State = to
	job.Result = result
	job.Error = jobErr
	job.UpdatedAt = c.now().UTC()
	return job.Clone(), true
}

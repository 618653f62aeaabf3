// Package jobs runs pull request analysis in the background.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// Queue is an in-memory, process-local job queue with a bounded worker pool.
// Jobs do not survive a restart.
type Queue struct {
	cfg    config.QueueConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*core.AnalysisJob
	handlers map[string]core.JobHandler
	timers   map[string]*time.Timer
	stopped  bool

	pending chan string
	quit    chan struct{}
	wg      sync.WaitGroup
}

var _ core.JobQueue = (*Queue)(nil)

// NewQueue starts cfg.Concurrency workers. Invalid sizes fall back to 1 worker
// and a capacity of 100.
func NewQueue(cfg config.QueueConfig, logger *slog.Logger) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}

	q := &Queue{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		jobs:     make(map[string]*core.AnalysisJob),
		handlers: make(map[string]core.JobHandler),
		timers:   make(map[string]*time.Timer),
		pending:  make(chan string, cfg.Capacity),
		quit:     make(chan struct{}),
	}
	for i := range cfg.Concurrency {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// RegisterHandler binds the handler that executes jobs of jobType.
func (q *Queue) RegisterHandler(jobType string, h core.JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Enqueue registers a pending job. It fails when the queue is stopped or its
// pending buffer is full.
func (q *Queue) Enqueue(_ context.Context, spec core.JobSpec) (string, error) {
	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.cfg.MaxRetries
	}
	job := &core.AnalysisJob{
		ID:         uuid.NewString(),
		Type:       spec.Type,
		Status:     core.JobPending,
		Data:       spec.Data,
		CreatedAt:  q.now(),
		MaxRetries: max(maxRetries, 0),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return "", core.NewError(core.KindTransient, "job queue is shutting down", nil)
	}

	select {
	case q.pending <- job.ID:
	default:
		return "", core.NewError(core.KindTransient, "job queue is full, cannot accept new analysis job", nil).
			WithDetail("capacity", q.cfg.Capacity)
	}
	q.jobs[job.ID] = job

	q.logger.Info("queued job",
		"job_id", job.ID,
		"type", job.Type,
		"repo", job.Data.RepositoryName,
		"pr", job.Data.PRNumber,
	)
	return job.ID, nil
}

// GetJobData returns a snapshot of the job, or nil when id is unknown.
func (q *Queue) GetJobData(id string) *core.AnalysisJob {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil
	}
	return snapshot(job)
}

func (q *Queue) GetQueueStats() core.QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats core.QueueStats
	for _, job := range q.jobs {
		switch job.Status {
		case core.JobPending:
			stats.Pending++
		case core.JobActive:
			stats.Active++
		case core.JobCompleted:
			stats.Completed++
		case core.JobFailed:
			stats.Failed++
		}
	}
	stats.Total = len(q.jobs)
	return stats
}

func (q *Queue) GetActiveJobsCount() int {
	return q.GetQueueStats().Active
}

// Stop refuses new jobs, cancels scheduled retries and waits for running jobs to
// finish. Jobs still pending stay pending.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.logger.Info("stopping job queue and waiting for jobs to finish")
	close(q.quit)
	q.wg.Wait()
	q.logger.Info("all analysis jobs have finished")
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("starting analysis worker", "id", workerID)

	for {
		select {
		case <-q.quit:
			q.logger.Debug("shutting down analysis worker", "id", workerID)
			return
		case id := <-q.pending:
			q.process(workerID, id)
		}
	}
}

func (q *Queue) process(workerID int, id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != core.JobPending {
		q.mu.Unlock()
		return
	}
	handler := q.handlers[job.Type]
	started := q.now()
	job.Status = core.JobActive
	job.StartedAt = &started
	attempt := snapshot(job)
	q.mu.Unlock()

	q.logger.Info("worker processing job",
		"worker_id", workerID,
		"job_id", id,
		"repo", attempt.Data.RepositoryName,
		"pr", attempt.Data.PRNumber,
		"attempt", attempt.RetryCount+1,
	)

	var (
		result any
		err    error
	)
	if handler == nil {
		err = core.Errorf(core.KindConfiguration, "no handler registered for job type %q", attempt.Type)
	} else {
		result, err = q.run(handler, attempt)
	}

	q.finish(id, result, err)
}

// run executes one attempt under the job timeout. A panicking handler counts as
// a failed attempt.
func (q *Queue) run(handler core.JobHandler, job *core.AnalysisJob) (result any, err error) {
	ctx := context.Background()
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = core.NewError(core.KindUnexpected, fmt.Sprintf("job handler panicked: %v", r), nil)
		}
	}()
	return handler.Handle(ctx, job)
}

func (q *Queue) finish(id string, result any, err error) {
	q.mu.Lock()
	job := q.jobs[id]

	if err == nil {
		completed := q.now()
		job.Status = core.JobCompleted
		job.Result = result
		job.Error = ""
		job.CompletedAt = &completed
		retries := job.RetryCount
		q.mu.Unlock()
		q.logger.Info("job completed", "job_id", id, "retries", retries)
		return
	}

	job.Error = err.Error()
	if core.IsTransient(err) && job.RetryCount < job.MaxRetries {
		delay := q.backoff(job.RetryCount)
		job.RetryCount++
		job.Status = core.JobPending
		job.StartedAt = nil
		// A stopped queue keeps the job pending instead of scheduling it.
		if !q.stopped {
			q.timers[id] = time.AfterFunc(delay, func() { q.requeue(id) })
		}
		retryCount := job.RetryCount
		q.mu.Unlock()

		q.logger.Warn("job failed, scheduling retry",
			"job_id", id, "retry", retryCount, "delay", delay, "error", err)
		return
	}

	completed := q.now()
	job.Status = core.JobFailed
	job.CompletedAt = &completed
	final := snapshot(job)
	handler := q.handlers[job.Type]
	q.mu.Unlock()

	q.logger.Error("job failed permanently",
		"job_id", id,
		"repo", final.Data.RepositoryName,
		"pr", final.Data.PRNumber,
		"retries", final.RetryCount,
		"error", err,
	)

	if hook, ok := handler.(core.JobFailureHandler); ok {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		hook.OnJobFailed(ctx, final, err)
	}
}

func (q *Queue) requeue(id string) {
	q.mu.Lock()
	delete(q.timers, id)
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return
	}

	select {
	case q.pending <- id:
	case <-q.quit:
	}
}

// backoff returns base·2^retryCount capped at the configured maximum.
func (q *Queue) backoff(retryCount int) time.Duration {
	delay := q.cfg.BackoffBase
	for range retryCount {
		delay *= 2
		if delay >= q.cfg.BackoffMax {
			return q.cfg.BackoffMax
		}
	}
	return min(delay, q.cfg.BackoffMax)
}

func snapshot(job *core.AnalysisJob) *core.AnalysisJob {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

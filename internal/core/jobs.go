package core

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of an AnalysisJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobTypePRAnalysis is the job type that reviews a pull request.
const JobTypePRAnalysis = "pr-analysis"

// AnalysisRequest identifies the pull request a job works on.
type AnalysisRequest struct {
	InstallationID int64  `json:"installationId"`
	RepositoryName string `json:"repositoryName"`
	PRNumber       int    `json:"prNumber"`
	PRURL          string `json:"prUrl,omitempty"`
	HeadSHA        string `json:"headSha,omitempty"`
	Source         string `json:"source,omitempty"`
}

// AnalysisJob is a unit of queued work.
type AnalysisJob struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      JobStatus       `json:"status"`
	Data        AnalysisRequest `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	RetryCount  int             `json:"retryCount"`
	MaxRetries  int             `json:"maxRetries"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// JobSpec describes a job to enqueue. MaxRetries of zero means "use the queue default".
type JobSpec struct {
	Type       string
	Data       AnalysisRequest
	MaxRetries int
}

// QueueStats is a point-in-time count of jobs per status.
type QueueStats struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// JobQueue accepts jobs for asynchronous processing and exposes their state.
type JobQueue interface {
	// Enqueue registers a pending job and returns its ID. It returns an error when
	// the queue cannot accept more work.
	Enqueue(ctx context.Context, spec JobSpec) (string, error)
	// GetJobData returns a snapshot of the job, or nil when the ID is unknown.
	GetJobData(id string) *AnalysisJob
	GetQueueStats() QueueStats
	GetActiveJobsCount() int
}

// JobHandler executes one attempt of a job. A returned error schedules a retry
// until the job's retry budget is spent.
type JobHandler interface {
	Handle(ctx context.Context, job *AnalysisJob) (any, error)
}

// JobFailureHandler is optionally implemented by a JobHandler that wants to react
// once a job has failed for good.
type JobFailureHandler interface {
	OnJobFailed(ctx context.Context, job *AnalysisJob, err error)
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(ctx context.Context, job *AnalysisJob) (any, error)

func (f JobHandlerFunc) Handle(ctx context.Context, job *AnalysisJob) (any, error) {
	return f(ctx, job)
}

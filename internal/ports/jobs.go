package ports

import (
	"context"
	"time"

	"compliancesync/internal/domain"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// AnalysisJob is a queued request to run the orchestrator for one profile.
type AnalysisJob struct {
	ID           string                `json:"id"`
	Profile      domain.CompanyProfile `json:"-"`
	Credential   string                `json:"-"`
	Status       JobStatus             `json:"status"`
	Progress     domain.ProgressState  `json:"progress"`
	RunID        string                `json:"runId,omitempty"`
	Persisted    bool                  `json:"persisted"`
	PersistError string                `json:"persistError,omitempty"`
	Error        string                `json:"error,omitempty"`
	QueuedAt     time.Time             `json:"queuedAt"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	FinishedAt   *time.Time            `json:"finishedAt,omitempty"`
	Attempts     int                   `json:"attempts"`
}

// JobRepository supports claiming and updating analysis jobs.
type JobRepository interface {
	Create(ctx context.Context, profile domain.CompanyProfile, credential string) (jobID string, err error)
	Get(ctx context.Context, jobID string) (AnalysisJob, error)
	ClaimNext(ctx context.Context) (job AnalysisJob, found bool, err error)
	StartJob(ctx context.Context, jobID string) (AnalysisJob, error)
	UpdateProgress(ctx context.Context, jobID string, state domain.ProgressState) error
	MarkCompleted(ctx context.Context, jobID string, runID string, persistErr error) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
}

// ErrJobNotFound is returned by job repositories for unknown job ids.
var ErrJobNotFound = errString("job not found")

// ErrJobNotQueued is returned when starting a job that was already claimed.
var ErrJobNotQueued = errString("job is not queued")

// Analyses enqueues and tracks analysis jobs.
type Analyses interface {
	Enqueue(ctx context.Context, profile domain.CompanyProfile, credential string) (jobID string, err error)
	Status(ctx context.Context, jobID string) (AnalysisJob, error)
}

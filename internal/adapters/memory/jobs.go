package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
)

var ErrJobNotFound = ports.ErrJobNotFound

var ErrJobNotQueued = ports.ErrJobNotQueued

// DefaultJobRetention is how long finished jobs stay readable.
const DefaultJobRetention = time.Hour

// JobRepository is a FIFO analysis job queue. Finished jobs are dropped once
// they are older than the retention window; their credential is cleared as
// soon as they finish.
type JobRepository struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	retention time.Duration
	jobs      map[string]*ports.AnalysisJob
	queue     []string
}

type JobOption func(*JobRepository)

// WithRetention sets how long finished jobs are kept. Zero keeps them forever.
func WithRetention(d time.Duration) JobOption {
	return func(r *JobRepository) { r.retention = d }
}

func NewJobRepository(clock clockwork.Clock, opts ...JobOption) *JobRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &JobRepository{clock: clock, retention: DefaultJobRetention, jobs: make(map[string]*ports.AnalysisJob)}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *JobRepository) Create(ctx context.Context, profile domain.CompanyProfile, credential string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictFinished()
	id := uuid.NewString()
	r.jobs[id] = &ports.AnalysisJob{
		ID:         id,
		Profile:    profile,
		Credential: credential,
		Status:     ports.JobQueued,
		QueuedAt:   r.clock.Now(),
	}
	r.queue = append(r.queue, id)
	return id, nil
}

func (r *JobRepository) Get(ctx context.Context, jobID string) (ports.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ports.AnalysisJob{}, ErrJobNotFound
	}
	return snapshot(job), nil
}

// ClaimNext pops the oldest queued job and marks it running.
func (r *JobRepository) ClaimNext(ctx context.Context) (ports.AnalysisJob, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictFinished()
	for len(r.queue) > 0 {
		id := r.queue[0]
		r.queue = r.queue[1:]
		job, ok := r.jobs[id]
		if !ok || job.Status != ports.JobQueued {
			continue
		}
		r.start(job)
		return snapshot(job), true, nil
	}
	return ports.AnalysisJob{}, false, nil
}

// StartJob marks a specific queued job running, taking it out of the queue.
func (r *JobRepository) StartJob(ctx context.Context, jobID string) (ports.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ports.AnalysisJob{}, ErrJobNotFound
	}
	if job.Status != ports.JobQueued {
		return ports.AnalysisJob{}, ErrJobNotQueued
	}
	for i, id := range r.queue {
		if id == jobID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	r.start(job)
	return snapshot(job), nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, state domain.ProgressState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Progress = state
	return nil
}

func (r *JobRepository) MarkCompleted(ctx context.Context, jobID string, runID string, persistErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	now := r.clock.Now()
	job.Status = ports.JobCompleted
	job.RunID = runID
	job.Persisted = persistErr == nil
	if persistErr != nil {
		job.PersistError = persistErr.Error()
	}
	job.FinishedAt = &now
	job.Credential = ""
	return nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	now := r.clock.Now()
	job.Status = ports.JobFailed
	job.Error = reason
	job.FinishedAt = &now
	job.Credential = ""
	return nil
}

func (r *JobRepository) evictFinished() {
	if r.retention <= 0 {
		return
	}
	cutoff := r.clock.Now().Add(-r.retention)
	for id, job := range r.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

func (r *JobRepository) start(job *ports.AnalysisJob) {
	now := r.clock.Now()
	job.Status = ports.JobRunning
	job.StartedAt = &now
	job.Attempts++
}

func snapshot(job *ports.AnalysisJob) ports.AnalysisJob {
	out := *job
	out.Progress.Steps = append([]domain.ProgressStep(nil), job.Progress.Steps...)
	return out
}

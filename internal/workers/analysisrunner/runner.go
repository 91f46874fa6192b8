package analysisrunner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"

	"compliancesync/internal/domain"
	"compliancesync/internal/metrics"
	"compliancesync/internal/ports"
	"compliancesync/internal/services/analysis"
)

// JobProcessor performs the analysis work for a claimed job.
type JobProcessor interface {
	Process(ctx context.Context, job ports.AnalysisJob) error
}

// Orchestrator is the analysis entry point a processor drives.
type Orchestrator interface {
	Run(ctx context.Context, req analysis.Request) (domain.AnalysisRun, error)
}

// HistoryAppender records completed runs.
type HistoryAppender interface {
	Append(ctx context.Context, run domain.AnalysisRun) error
}

// RunProcessor runs the orchestrator for a job, appends the run to history and
// settles the job. Progress snapshots are written to the job as they happen.
type RunProcessor struct {
	Runner  Orchestrator
	History HistoryAppender
	Jobs    ports.JobRepository
}

// Process returns an error only when the run itself was rejected; a run whose
// history append failed still completes, with the persistence error recorded
// on the job.
func (p RunProcessor) Process(ctx context.Context, job ports.AnalysisJob) error {
	reporter := ports.ProgressReporterFunc(func(ctx context.Context, state domain.ProgressState) error {
		return p.Jobs.UpdateProgress(ctx, job.ID, state)
	})
	run, err := p.Runner.Run(ctx, analysis.Request{
		Profile:    job.Profile,
		Credential: job.Credential,
		Reporter:   reporter,
	})
	if err != nil {
		return err
	}

	persistErr := p.History.Append(ctx, run)
	var pe *domain.PersistenceError
	if persistErr != nil && !errors.As(persistErr, &pe) {
		persistErr = &domain.PersistenceError{RunID: run.ID, Err: persistErr}
	}
	return p.Jobs.MarkCompleted(ctx, job.ID, run.ID, persistErr)
}

// Run claims and processes jobs until ctx is done, then waits for in-flight
// jobs to finish before returning. Cancelling ctx stops claiming only: a job
// already claimed runs to completion on a detached context, so shutdown never
// turns unreached jurisdictions into failures.
func Run(ctx context.Context, repo ports.JobRepository, processor JobProcessor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.AnalysisJob, concurrency)
	runCtx := context.WithoutCancel(ctx)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.WithError(err).Error("job claim error")
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						_ = repo.MarkFailed(runCtx, job.ID, "shutting down")
						return
					}
				}
			}
		}
	}()

	// workers
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				process(runCtx, repo, processor, job, log.WithFields(log.Fields{"worker": idx, "job_id": job.ID}))
			}
		}(i)
	}
	wg.Wait()
}

// ProcessInline starts and processes a specific job synchronously using the
// same processor logic as the background workers.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor JobProcessor, jobID string) error {
	job, err := repo.StartJob(ctx, jobID)
	if err != nil {
		return err
	}
	return process(ctx, repo, processor, job, log.WithField("job_id", jobID))
}

func process(ctx context.Context, repo ports.JobRepository, processor JobProcessor, job ports.AnalysisJob, logger log.Interface) error {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	if err := processor.Process(ctx, job); err != nil {
		if markErr := repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.WithError(markErr).Error("mark failed error")
		}
		logger.WithError(err).Warn("job failed")
		return err
	}
	logger.Info("job completed")
	return nil
}

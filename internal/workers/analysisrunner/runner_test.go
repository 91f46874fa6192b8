package analysisrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancesync/internal/adapters/memory"
	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
	"compliancesync/internal/services/analysis"
	"compliancesync/internal/services/history"
)

type stubAnalyzer struct{ fail map[string]bool }

func (s stubAnalyzer) Health(ctx context.Context) error { return nil }

func (s stubAnalyzer) Analyze(ctx context.Context, req ports.AnalyzeRequest) (domain.JurisdictionResult, error) {
	if s.fail[req.JurisdictionID] {
		return domain.JurisdictionResult{}, errors.New("upstream 500")
	}
	return domain.JurisdictionResult{
		ComplianceScore:  80,
		Status:           domain.StatusCompliant,
		RiskLevel:        domain.RiskLow,
		RequirementsList: []domain.Requirement{},
	}, nil
}

type brokenRuns struct{}

func (brokenRuns) Insert(ctx context.Context, run domain.AnalysisRun) error {
	return errors.New("disk full")
}

func (brokenRuns) List(ctx context.Context) ([]domain.AnalysisRun, error) { return nil, nil }

func setup(t *testing.T, runs ports.RunRepository) (*memory.JobRepository, *history.Store, RunProcessor) {
	t.Helper()
	store, err := history.Open(context.Background(), runs)
	require.NoError(t, err)
	jobs := memory.NewJobRepository(nil)
	proc := RunProcessor{
		Runner:  analysis.New(stubAnalyzer{fail: map[string]bool{"sg": true}}),
		History: store,
		Jobs:    jobs,
	}
	return jobs, store, proc
}

var acme = domain.CompanyProfile{CompanyName: "Acme", CurrentJurisdictions: []string{"us", "sg"}}

func TestProcessInline_CompletesAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	jobs, store, proc := setup(t, memory.NewRunRepository())
	id, err := jobs.Create(ctx, acme, "key")
	require.NoError(t, err)

	require.NoError(t, ProcessInline(ctx, jobs, proc, id))

	job, err := jobs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ports.JobCompleted, job.Status)
	assert.True(t, job.Persisted)
	assert.Equal(t, 100, job.Progress.Percent)
	require.Equal(t, 1, store.Len())

	run, err := store.Get(0)
	require.NoError(t, err)
	assert.Equal(t, job.RunID, run.ID)
	require.Len(t, run.Results, 2)
	assert.False(t, run.Results[0].Failed())
	assert.True(t, run.Results[1].Failed())
}

func TestProcessInline_PersistFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	jobs, store, proc := setup(t, brokenRuns{})
	id, _ := jobs.Create(ctx, acme, "key")

	require.NoError(t, ProcessInline(ctx, jobs, proc, id))

	job, _ := jobs.Get(ctx, id)
	assert.Equal(t, ports.JobCompleted, job.Status)
	assert.False(t, job.Persisted)
	assert.Contains(t, job.PersistError, "disk full")
	assert.Equal(t, 1, store.Len())
}

func TestProcessInline_MissingCredentialFailsJob(t *testing.T) {
	ctx := context.Background()
	jobs, store, proc := setup(t, memory.NewRunRepository())
	id, _ := jobs.Create(ctx, acme, "")

	err := ProcessInline(ctx, jobs, proc, id)
	var pe *domain.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ReasonMissingCredential, pe.Reason)

	job, _ := jobs.Get(ctx, id)
	assert.Equal(t, ports.JobFailed, job.Status)
	assert.NotEmpty(t, job.Error)
	assert.Equal(t, 0, store.Len())
}

func TestProcessInline_UnknownJob(t *testing.T) {
	jobs, _, proc := setup(t, memory.NewRunRepository())
	err := ProcessInline(context.Background(), jobs, proc, "nope")
	assert.ErrorIs(t, err, memory.ErrJobNotFound)
}

func TestRun_WorkersDrainQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs, store, proc := setup(t, memory.NewRunRepository())

	ids := make([]string, 3)
	for i := range ids {
		id, err := jobs.Create(ctx, acme, "key")
		require.NoError(t, err)
		ids[i] = id
	}

	done := make(chan struct{})
	go func() {
		Run(ctx, jobs, proc, 2, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := jobs.Get(ctx, id)
			if err != nil || job.Status != ports.JobCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, store.Len())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
}

func TestRun_CancelLetsInFlightJobFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store, err := history.Open(context.Background(), memory.NewRunRepository())
	require.NoError(t, err)
	jobs := memory.NewJobRepository(nil)
	analyzer := &slowAnalyzer{delay: 50 * time.Millisecond, started: make(chan struct{}, 8)}
	proc := RunProcessor{Runner: analysis.New(analyzer), History: store, Jobs: jobs}

	profile := domain.CompanyProfile{CompanyName: "Acme", CurrentJurisdictions: []string{"us", "eu", "uk", "sg"}}
	id, err := jobs.Create(ctx, profile, "key")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		Run(ctx, jobs, proc, 1, 5*time.Millisecond)
		close(done)
	}()

	<-analyzer.started
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	job, err := jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ports.JobCompleted, job.Status)
	require.Equal(t, 1, store.Len())
	run, _ := store.Get(0)
	require.Len(t, run.Results, 4)
	for _, res := range run.Results {
		assert.False(t, res.Failed(), res.JurisdictionID)
	}
}

// slowAnalyzer takes delay per call and honors cancellation.
type slowAnalyzer struct {
	delay   time.Duration
	started chan struct{}
}

func (s *slowAnalyzer) Health(ctx context.Context) error { return nil }

func (s *slowAnalyzer) Analyze(ctx context.Context, req ports.AnalyzeRequest) (domain.JurisdictionResult, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return domain.JurisdictionResult{}, ctx.Err()
	}
	return domain.JurisdictionResult{
		ComplianceScore:  90,
		Status:           domain.StatusCompliant,
		RiskLevel:        domain.RiskLow,
		RequirementsList: []domain.Requirement{},
	}, nil
}

func TestRun_ZeroConcurrencyIsNoop(t *testing.T) {
	ctx := context.Background()
	jobs, _, proc := setup(t, memory.NewRunRepository())
	id, _ := jobs.Create(ctx, acme, "key")

	Run(ctx, jobs, proc, 0, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	job, _ := jobs.Get(ctx, id)
	assert.Equal(t, ports.JobQueued, job.Status)
}

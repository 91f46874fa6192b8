// Package analysis runs one compliance analysis across every current
// jurisdiction of a company profile.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"compliancesync/internal/domain"
	"compliancesync/internal/metrics"
	"compliancesync/internal/ports"
	"compliancesync/internal/services/analytics"
	"compliancesync/internal/services/progress"
)

// Runner calls the analyzer once per jurisdiction, sequentially and in
// request order. A failing jurisdiction becomes a sentinel result; it never
// aborts the run. Runner holds no per-run state, so concurrent Run calls for
// different profiles are independent.
type Runner struct {
	analyzer    ports.JurisdictionAnalyzer
	directory   *domain.Directory
	clock       clockwork.Clock
	callTimeout time.Duration
	stages      []domain.StageDefinition
}

type Option func(*Runner)

func WithClock(c clockwork.Clock) Option { return func(r *Runner) { r.clock = c } }

func WithDirectory(d *domain.Directory) Option { return func(r *Runner) { r.directory = d } }

// WithCallTimeout bounds every analyzer call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option { return func(r *Runner) { r.callTimeout = d } }

func New(analyzer ports.JurisdictionAnalyzer, opts ...Option) *Runner {
	r := &Runner{
		analyzer:  analyzer,
		directory: domain.DefaultDirectory(),
		clock:     clockwork.NewRealClock(),
		stages:    domain.AnalysisStages,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Request carries everything one run needs. Tracker and Reporter are
// optional; a private tracker is used when Tracker is nil.
type Request struct {
	Profile    domain.CompanyProfile
	Credential string
	Tracker    *progress.Tracker
	Reporter   ports.ProgressReporter
}

// Run executes one analysis. It returns *domain.ValidationError or
// *domain.PreconditionError before any analyzer call; after that it always
// returns a run with one result per requested jurisdiction.
func (r *Runner) Run(ctx context.Context, req Request) (domain.AnalysisRun, error) {
	if err := req.Profile.Validate(); err != nil {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		return domain.AnalysisRun{}, err
	}
	if strings.TrimSpace(req.Credential) == "" {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		return domain.AnalysisRun{}, &domain.PreconditionError{Reason: domain.ReasonMissingCredential}
	}
	if err := r.checkHealth(ctx); err != nil {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		return domain.AnalysisRun{}, &domain.PreconditionError{Reason: domain.ReasonAnalyzerUnavailable, Err: err}
	}

	tracker := req.Tracker
	if tracker == nil {
		tracker = progress.New(r.stages)
	} else {
		tracker.Reset(r.stages)
	}
	p := &pipeline{tracker: tracker, reporter: req.Reporter}

	jurisdictions := req.Profile.CurrentJurisdictions
	n := len(jurisdictions)
	run := domain.AnalysisRun{
		ID:        uuid.NewString(),
		Timestamp: r.clock.Now().UTC(),
		Company:   req.Profile.CompanyName,
		Results:   make([]domain.JurisdictionResult, 0, n),
	}
	logger := log.WithFields(log.Fields{
		"run_id":        run.ID,
		"company":       req.Profile.CompanyName,
		"jurisdictions": n,
	})
	logger.Info("analysis run started")

	p.advance(ctx, domain.StageInitializing, domain.StepProcessing, fmt.Sprintf("Preparing analysis of %d jurisdictions", n))
	p.advance(ctx, domain.StageProfile, domain.StepProcessing, "Processing profile for "+displayCompany(req.Profile))
	p.advance(ctx, domain.StageRequirements, domain.StepProcessing, fmt.Sprintf("Retrieving requirements for %d jurisdictions", n))

	failed := 0
	for i, id := range jurisdictions {
		entry, _ := r.directory.Lookup(id)
		p.advance(ctx, domain.StageAnalyzing, domain.StepProcessing, fmt.Sprintf("Analyzing %s (%d/%d)", entry.Name, i+1, n))

		res, err := r.analyzeOne(ctx, id, req)
		if err != nil {
			failed++
			logger.WithError(err).WithField("jurisdiction", id).Warn("jurisdiction analysis failed")
			run.Results = append(run.Results, domain.FailedResult(id, entry, failureMessage(err), run.Timestamp))
			continue
		}
		run.Results = append(run.Results, r.normalize(logger, id, entry, res, run.Timestamp))
	}

	if failed == n {
		p.advance(ctx, domain.StageAnalyzing, domain.StepError, fmt.Sprintf("All %d jurisdictions failed", n))
	} else {
		p.advance(ctx, domain.StageAnalyzing, domain.StepComplete, fmt.Sprintf("%d of %d jurisdictions analyzed", n-failed, n))
	}
	p.advance(ctx, domain.StageScoring, domain.StepProcessing, "")
	p.advance(ctx, domain.StageRecommendations, domain.StepProcessing, "")
	p.advance(ctx, domain.StageFinalizing, domain.StepProcessing, "")
	p.finalize(ctx)

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	logger.WithField("failed", failed).Info("analysis run finished")
	return run, nil
}

func (r *Runner) checkHealth(ctx context.Context) error {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}
	return r.analyzer.Health(ctx)
}

// analyzeOne makes the single attempt for one jurisdiction. Timeouts, transport
// errors, bad payloads and analyzer panics all come back as
// *domain.JurisdictionAnalysisError.
func (r *Runner) analyzeOne(ctx context.Context, id string, req Request) (res domain.JurisdictionResult, err error) {
	callCtx := ctx
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	start := r.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analyzer panic: %v", p)
		}
		outcome := "success"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case err != nil:
			outcome = "failure"
		}
		metrics.JurisdictionAnalysesTotal.WithLabelValues(outcome).Inc()
		metrics.AnalyzerCallDurationSeconds.WithLabelValues(outcome).Observe(r.clock.Since(start).Seconds())
		if err != nil {
			err = &domain.JurisdictionAnalysisError{JurisdictionID: id, Err: err}
		}
	}()

	res, err = r.analyzer.Analyze(callCtx, ports.AnalyzeRequest{
		JurisdictionID: id,
		CompanyProfile: req.Profile,
		Credential:     req.Credential,
	})
	if err != nil {
		return domain.JurisdictionResult{}, err
	}
	if err := res.Check(); err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("malformed analyzer payload: %w", err)
	}
	return res, nil
}

// normalize attaches directory data and the run timestamp, and replaces the
// analyzer's requirement counts when they disagree with the list.
func (r *Runner) normalize(logger log.Interface, id string, entry domain.JurisdictionEntry, res domain.JurisdictionResult, at time.Time) domain.JurisdictionResult {
	res.JurisdictionID = id
	res.JurisdictionName = entry.Name
	res.Flag = entry.Flag
	res.AnalyzedAt = at
	res.Error = ""
	if res.RequirementsList == nil {
		res.RequirementsList = []domain.Requirement{}
	}
	if len(res.RequirementsList) > 0 {
		counts := analytics.Summarize(res.RequirementsList).Counts()
		if counts != res.Requirements {
			logger.WithFields(log.Fields{
				"jurisdiction": id,
				"reported":     res.Requirements,
				"derived":      counts,
			}).Warn("analyzer requirement counts drifted from list")
			res.Requirements = counts
		}
	}
	return res
}

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "analysis timed out"
	}
	var jae *domain.JurisdictionAnalysisError
	if errors.As(err, &jae) && jae.Err != nil {
		return jae.Err.Error()
	}
	return err.Error()
}

func displayCompany(p domain.CompanyProfile) string {
	if p.CompanyName == "" {
		return "company"
	}
	return p.CompanyName
}

// pipeline drives the tracker and forwards snapshots to the reporter.
// Failures here are logged and dropped; they never affect the run.
type pipeline struct {
	tracker  *progress.Tracker
	reporter ports.ProgressReporter
}

func (p *pipeline) advance(ctx context.Context, id domain.StageID, status domain.StepStatus, description string) {
	if err := p.tracker.Advance(id, status, description); err != nil {
		log.WithError(err).WithField("stage", id).Debug("progress advance ignored")
	}
	p.report(ctx)
}

func (p *pipeline) finalize(ctx context.Context) {
	p.tracker.Finalize()
	p.report(ctx)
}

func (p *pipeline) report(ctx context.Context) {
	if p.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Debug("progress reporter panicked")
		}
	}()
	if err := p.reporter.ReportProgress(ctx, p.tracker.State()); err != nil {
		log.WithError(err).Debug("progress report failed")
	}
}

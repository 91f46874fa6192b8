package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
	"compliancesync/internal/services/analytics"
	"compliancesync/internal/services/history"
	"compliancesync/internal/workers/analysisrunner"
)

const (
	defaultWaitTimeout = 30
	maxRequestBytes    = 1 << 20 // 1 MiB
)

// Server serves the analysis and history API consumed by the UI layer.
type Server struct {
	analyses  ports.Analyses
	history   ports.History
	directory *domain.Directory
	jobs      ports.JobRepository
	processor analysisrunner.JobProcessor
	inline    sync.WaitGroup
}

func New(analyses ports.Analyses, hist ports.History, directory *domain.Directory, jobs ports.JobRepository, processor analysisrunner.JobProcessor) *Server {
	if directory == nil {
		directory = domain.DefaultDirectory()
	}
	return &Server{analyses: analyses, history: hist, directory: directory, jobs: jobs, processor: processor}
}

// Wait blocks until every inline analysis started by POST /analyses?wait=true
// has finished.
func (s *Server) Wait() { s.inline.Wait() }

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/jurisdictions", s.getJurisdictions)

	r.Post("/analyses", s.postAnalysis)
	r.Get("/analyses/{jobId}", s.getAnalysis)

	r.Get("/history", s.getHistory)
	r.Route("/history/{index}", func(r chi.Router) {
		r.Get("/", s.getRun)
		r.Get("/overview", s.getOverview)
		r.Get("/jurisdictions/{jurisdictionId}/analytics", s.getJurisdictionAnalytics)
		r.Get("/jurisdictions/{jurisdictionId}/report", s.getReport)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getJurisdictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.directory.All())
}

// AnalysisRequest is the POST /analyses body.
type AnalysisRequest struct {
	CompanyProfile domain.CompanyProfile `json:"companyProfile"`
	Credential     string                `json:"credential,omitempty"`
}

type analysisAccepted struct {
	JobID string `json:"jobId"`
}

type analysisResult struct {
	Job ports.AnalysisJob   `json:"job"`
	Run *domain.AnalysisRun `json:"run,omitempty"`
}

func (s *Server) postAnalysis(w http.ResponseWriter, r *http.Request) {
	var body AnalysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	var wait bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeout := defaultWaitTimeout
	if err := runtime.BindQueryParameter("form", true, false, "timeout", r.URL.Query(), &timeout); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	id, err := s.analyses.Enqueue(r.Context(), body.CompanyProfile, body.Credential)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, analysisAccepted{JobID: id})
		return
	}

	// The run is detached from the request: the timeout bounds how long the
	// caller waits, never the analysis itself.
	runCtx := context.WithoutCancel(r.Context())
	done := make(chan error, 1)
	s.inline.Add(1)
	go func() {
		defer s.inline.Done()
		// Same processor the workers use.
		done <- analysisrunner.ProcessInline(runCtx, s.jobs, s.processor, id)
	}()

	timer := time.NewTimer(time.Duration(timeout) * time.Second)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, analysisAccepted{JobID: id})
		return
	case <-r.Context().Done():
		return
	}
	if errors.Is(err, ports.ErrJobNotQueued) {
		// a background worker claimed it first
		writeJSON(w, http.StatusAccepted, analysisAccepted{JobID: id})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	job, err := s.analyses.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := analysisResult{Job: job}
	if job.RunID != "" {
		if run, _, err := s.history.Find(job.RunID); err == nil {
			resp.Run = &run
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	var jobID string
	if err := bindPath(r, "jobId", &jobID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.analyses.Status(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.Load())
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runAt(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getOverview(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runAt(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analytics.Overview(run))
}

// JurisdictionAnalytics is the chart data for one jurisdiction of a run.
type JurisdictionAnalytics struct {
	JurisdictionID string                        `json:"jurisdictionId"`
	Summary        analytics.RequirementSummary  `json:"summary"`
	ByCategory     []analytics.CategoryBreakdown `json:"byCategory"`
	ByRisk         analytics.RiskBreakdown       `json:"byRisk"`
}

// Report is what a report renderer needs for one jurisdiction.
type Report struct {
	RunID       string                    `json:"runId"`
	CompanyName string                    `json:"companyName,omitempty"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Result      domain.JurisdictionResult `json:"result"`
	JurisdictionAnalytics
}

func (s *Server) getJurisdictionAnalytics(w http.ResponseWriter, r *http.Request) {
	_, res, ok := s.resultAt(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, jurisdictionAnalytics(res))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	run, res, ok := s.resultAt(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Report{
		RunID:                 run.ID,
		CompanyName:           run.Company,
		GeneratedAt:           run.Timestamp,
		Result:                res,
		JurisdictionAnalytics: jurisdictionAnalytics(res),
	})
}

func jurisdictionAnalytics(res domain.JurisdictionResult) JurisdictionAnalytics {
	return JurisdictionAnalytics{
		JurisdictionID: res.JurisdictionID,
		Summary:        analytics.Summarize(res.RequirementsList),
		ByCategory:     analytics.ByCategory(res.RequirementsList),
		ByRisk:         analytics.ByRisk(res.RequirementsList),
	}
}

func (s *Server) runAt(w http.ResponseWriter, r *http.Request) (domain.AnalysisRun, bool) {
	var index int
	if err := bindPath(r, "index", &index); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.AnalysisRun{}, false
	}
	run, err := s.history.Get(index)
	if err != nil {
		writeDomainError(w, err)
		return domain.AnalysisRun{}, false
	}
	return run, true
}

func (s *Server) resultAt(w http.ResponseWriter, r *http.Request) (domain.AnalysisRun, domain.JurisdictionResult, bool) {
	run, ok := s.runAt(w, r)
	if !ok {
		return run, domain.JurisdictionResult{}, false
	}
	var jurisdictionID string
	if err := bindPath(r, "jurisdictionId", &jurisdictionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return run, domain.JurisdictionResult{}, false
	}
	res, found := run.Result(jurisdictionID)
	if !found {
		writeError(w, http.StatusNotFound, "jurisdiction not in run")
		return run, domain.JurisdictionResult{}, false
	}
	return run, res, true
}

func bindPath(r *http.Request, name string, dest any) error {
	return runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		pe *domain.PreconditionError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &pe) && pe.Reason == domain.ReasonMissingCredential:
		writeError(w, http.StatusPreconditionFailed, pe.Error())
	case errors.As(err, &pe):
		writeError(w, http.StatusServiceUnavailable, pe.Error())
	case errors.Is(err, history.ErrNotFound), errors.Is(err, ports.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("response write failed")
	}
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RunsTotal counts orchestrator runs by result (completed, rejected).
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliancesync",
		Subsystem: "analysis",
		Name:      "runs_total",
		Help:      "Total number of analysis runs, labeled by result.",
	}, []string{"result"})

	// JurisdictionAnalysesTotal counts per-jurisdiction analyzer calls by outcome.
	JurisdictionAnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliancesync",
		Subsystem: "analysis",
		Name:      "jurisdiction_analyses_total",
		Help:      "Total number of per-jurisdiction analyses, labeled by outcome (success, failure, timeout).",
	}, []string{"outcome"})

	// AnalyzerCallDurationSeconds is the latency of one analyzer call.
	AnalyzerCallDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "compliancesync",
		Subsystem: "analysis",
		Name:      "analyzer_call_duration_seconds",
		Help:      "Time spent waiting on the external jurisdiction analyzer.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"outcome"})

	AnalyzerCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "compliancesync",
		Subsystem: "analysis",
		Name:      "analyzer_cache_hits_total",
		Help:      "Total number of analyzer results served from cache.",
	})

	HistoryPersistErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "compliancesync",
		Subsystem: "history",
		Name:      "persist_errors_total",
		Help:      "Total number of completed runs that could not be persisted.",
	})

	// JobsInFlight is the number of analysis jobs currently held by workers.
	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "compliancesync",
		Subsystem: "jobs",
		Name:      "in_flight",
		Help:      "Current number of analysis jobs being processed.",
	})
)

// Register adds all collectors to the default registry. Safe to call more
// than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RunsTotal,
			JurisdictionAnalysesTotal,
			AnalyzerCallDurationSeconds,
			AnalyzerCacheHitsTotal,
			HistoryPersistErrorsTotal,
			JobsInFlight,
		)
	})
}

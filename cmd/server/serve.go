package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"compliancesync/internal/adapters/analyzer"
	"compliancesync/internal/adapters/cache"
	httpadapter "compliancesync/internal/adapters/http"
	"compliancesync/internal/adapters/memory"
	"compliancesync/internal/config"
	"compliancesync/internal/domain"
	"compliancesync/internal/metrics"
	"compliancesync/internal/ports"
	"compliancesync/internal/services/analyses"
	"compliancesync/internal/services/analysis"
	"compliancesync/internal/services/history"
	"compliancesync/internal/workers/analysisrunner"
)

func serve(parent context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	metrics.Register()

	runs, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	store, err := history.Open(ctx, runs)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	log.WithFields(log.Fields{"backend": cfg.HistoryBackend, "runs": store.Len()}).Info("history loaded")

	az, closeCache, err := buildAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	runner := analysis.New(az, analysis.WithCallTimeout(cfg.AnalyzerTimeout))
	jobs := memory.NewJobRepository(clockwork.NewRealClock(), memory.WithRetention(cfg.JobRetention))
	processor := analysisrunner.RunProcessor{Runner: runner, History: store, Jobs: jobs}
	srv := httpadapter.New(analyses.New(jobs, cfg.AnalyzerAPIKey), store, domain.DefaultDirectory(), jobs, processor)

	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if cfg.AnalysisWorkers > 0 {
			log.WithField("workers", cfg.AnalysisWorkers).Info("analysis workers started")
			analysisrunner.Run(ctx, jobs, processor, cfg.AnalysisWorkers, 500*time.Millisecond)
		}
	}()

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.WithField("addr", cfg.ListenAddr).Info("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	// History stays open until every claimed or inline run has been appended.
	<-workersDone
	srv.Wait()
	log.Info("analysis runs drained")
	return serveErr
}

// buildAnalyzer returns the HTTP analyzer client, wrapped in the result cache
// unless ANALYSIS_CACHE_TTL is zero.
func buildAnalyzer(ctx context.Context, cfg config.Config) (ports.JurisdictionAnalyzer, func(), error) {
	client, err := analyzer.NewClient(cfg.AnalyzerURL,
		analyzer.WithRateLimit(cfg.AnalyzerRate, cfg.AnalyzerBurst),
	)
	if err != nil {
		return nil, nil, err
	}
	if cfg.CacheTTL <= 0 {
		return client, func() {}, nil
	}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return analyzer.NewCached(client, rc, cfg.CacheTTL), func() { _ = rc.Close() }, nil
	}
	return analyzer.NewCached(client, cache.NewMemory(clockwork.NewRealClock()), cfg.CacheTTL), func() {}, nil
}

// Package history keeps the append-only, newest-first log of completed
// analysis runs.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/apex/log"

	"compliancesync/internal/domain"
	"compliancesync/internal/metrics"
	"compliancesync/internal/ports"
)

var ErrNotFound = errString("run not found")

type errString string

func (e errString) Error() string { return string(e) }

// Store mirrors the persisted log in memory. Index 0 is always the most
// recently appended run. Appends are serialized; the store assumes a single
// writing process.
type Store struct {
	mu   sync.RWMutex
	repo ports.RunRepository
	runs []domain.AnalysisRun
}

// Open loads the persisted log from repo. A missing or malformed log starts
// empty; other repository errors are returned.
func Open(ctx context.Context, repo ports.RunRepository) (*Store, error) {
	s := &Store{repo: repo}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory log with the persisted one.
func (s *Store) Reload(ctx context.Context) error {
	runs, err := s.repo.List(ctx)
	if errors.Is(err, ports.ErrMalformed) {
		log.WithError(err).Warn("persisted history is malformed, starting empty")
		runs, err = nil, nil
	}
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []domain.AnalysisRun{}
	}
	s.mu.Lock()
	s.runs = runs
	s.mu.Unlock()
	return nil
}

// Append puts run at index 0 and persists it. The in-memory log is updated
// even when persisting fails; that failure is returned as a
// *domain.PersistenceError.
func (s *Store) Append(ctx context.Context, run domain.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append([]domain.AnalysisRun{run}, s.runs...)
	if err := s.repo.Insert(ctx, run); err != nil {
		metrics.HistoryPersistErrorsTotal.Inc()
		log.WithError(err).WithField("run_id", run.ID).Error("history persist failed")
		return &domain.PersistenceError{RunID: run.ID, Err: err}
	}
	return nil
}

// Load returns the log, newest first.
func (s *Store) Load() []domain.AnalysisRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnalysisRun, len(s.runs))
	copy(out, s.runs)
	return out
}

// Get returns the run at index, where 0 is the newest.
func (s *Store) Get(index int) (domain.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.runs) {
		return domain.AnalysisRun{}, ErrNotFound
	}
	return s.runs[index], nil
}

// Len is the number of runs in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Find returns the run with the given id and its current index.
func (s *Store) Find(id string) (domain.AnalysisRun, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, r := range s.runs {
		if r.ID == id {
			return r, i, nil
		}
	}
	return domain.AnalysisRun{}, -1, ErrNotFound
}

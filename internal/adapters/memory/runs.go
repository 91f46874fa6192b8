// Package memory holds process-local adapters used for development and
// tests. Nothing here survives a restart.
package memory

import (
	"context"
	"sync"

	"compliancesync/internal/domain"
)

// RunRepository keeps runs newest first.
type RunRepository struct {
	mu   sync.Mutex
	runs []domain.AnalysisRun
}

func NewRunRepository() *RunRepository { return &RunRepository{} }

func (r *RunRepository) Insert(ctx context.Context, run domain.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append([]domain.AnalysisRun{run}, r.runs...)
	return nil
}

func (r *RunRepository) List(ctx context.Context) ([]domain.AnalysisRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AnalysisRun, len(r.runs))
	copy(out, r.runs)
	return out, nil
}

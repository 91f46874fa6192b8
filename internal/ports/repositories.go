package ports

import (
	"context"
	"time"

	"compliancesync/internal/domain"
)

// RunRepository persists completed analysis runs.
type RunRepository interface {
	// Insert durably stores one run as the newest entry.
	Insert(ctx context.Context, run domain.AnalysisRun) error
	// List returns every stored run, newest first. A malformed record is
	// reported as ErrMalformed.
	List(ctx context.Context) ([]domain.AnalysisRun, error)
}

// ResultCache stores successful analyzer results.
type ResultCache interface {
	Get(ctx context.Context, key string) (result domain.JurisdictionResult, found bool, err error)
	Set(ctx context.Context, key string, result domain.JurisdictionResult, ttl time.Duration) error
}

// ErrMalformed marks a persisted history that cannot be decoded.
var ErrMalformed = errString("malformed persisted history")

type errString string

func (e errString) Error() string { return string(e) }

// History is the read side of the run log, newest first.
type History interface {
	Load() []domain.AnalysisRun
	Get(index int) (domain.AnalysisRun, error)
	Find(id string) (run domain.AnalysisRun, index int, err error)
}

package ports

import (
	"context"

	"compliancesync/internal/domain"
)

// AnalyzeRequest is the wire request for one jurisdiction.
type AnalyzeRequest struct {
	JurisdictionID string                `json:"jurisdictionId"`
	CompanyProfile domain.CompanyProfile `json:"companyProfile"`
	Credential     string                `json:"credential"`
}

// JurisdictionAnalyzer is the external analysis capability. Any error means
// the jurisdiction failed.
type JurisdictionAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (domain.JurisdictionResult, error)
	Health(ctx context.Context) error
}

// ProgressReporter receives progress snapshots while a run executes.
// Implementations may fail; the runner ignores their errors.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, state domain.ProgressState) error
}

// ProgressReporterFunc adapts a function to ProgressReporter.
type ProgressReporterFunc func(ctx context.Context, state domain.ProgressState) error

func (f ProgressReporterFunc) ReportProgress(ctx context.Context, state domain.ProgressState) error {
	return f(ctx, state)
}

// Package analyses enqueues analysis jobs and reports their status.
package analyses

import (
	"context"
	"strings"

	"github.com/apex/log"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
)

type Service struct {
	jobs              ports.JobRepository
	defaultCredential string
}

// New returns a Service. defaultCredential is used for requests that carry no
// analyzer credential of their own.
func New(jobs ports.JobRepository, defaultCredential string) *Service {
	return &Service{jobs: jobs, defaultCredential: defaultCredential}
}

// Enqueue validates the profile and queues a job for it. The credential check
// happens when the job runs, so a job without one fails with a precondition
// error rather than being rejected here.
func (s *Service) Enqueue(ctx context.Context, profile domain.CompanyProfile, credential string) (string, error) {
	if err := profile.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(credential) == "" {
		credential = s.defaultCredential
	}
	id, err := s.jobs.Create(ctx, profile, credential)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"job_id":        id,
		"company":       profile.CompanyName,
		"domain":        profile.RegistrableDomain(),
		"jurisdictions": len(profile.CurrentJurisdictions),
	}).Info("analysis queued")
	return id, nil
}

func (s *Service) Status(ctx context.Context, jobID string) (ports.AnalysisJob, error) {
	return s.jobs.Get(ctx, jobID)
}

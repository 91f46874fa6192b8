package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/apex/log"

	"compliancesync/internal/domain"
	"compliancesync/internal/metrics"
	"compliancesync/internal/ports"
)

// Cached serves repeated analyses of the same company and jurisdiction from a
// cache. Only successful results are stored.
type Cached struct {
	next  ports.JurisdictionAnalyzer
	cache ports.ResultCache
	ttl   time.Duration
}

func NewCached(next ports.JurisdictionAnalyzer, cache ports.ResultCache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// CacheKey identifies an analysis by jurisdiction and the profile fields the
// analyzer's answer depends on.
func CacheKey(req ports.AnalyzeRequest) string {
	p := req.CompanyProfile
	parts := []string{
		strings.ToLower(strings.TrimSpace(req.JurisdictionID)),
		strings.ToLower(strings.TrimSpace(p.CompanyName)),
		strings.ToLower(strings.TrimSpace(p.Industry)),
		strings.ToLower(strings.TrimSpace(p.CompanySize)),
		p.RegistrableDomain(),
	}
	return "analysis:" + strings.Join(parts, "|")
}

func (c *Cached) Analyze(ctx context.Context, req ports.AnalyzeRequest) (domain.JurisdictionResult, error) {
	key := CacheKey(req)
	res, found, err := c.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("analysis cache read failed")
	}
	if found {
		metrics.AnalyzerCacheHitsTotal.Inc()
		return res, nil
	}

	res, err = c.next.Analyze(ctx, req)
	if err != nil {
		return res, err
	}
	if err := c.cache.Set(ctx, key, res, c.ttl); err != nil {
		log.WithError(err).WithField("key", key).Warn("analysis cache write failed")
	}
	return res, nil
}

func (c *Cached) Health(ctx context.Context) error { return c.next.Health(ctx) }

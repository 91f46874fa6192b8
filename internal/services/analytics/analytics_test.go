package analytics

import (
	"slices"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancesync/internal/domain"
)

var run0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func req(category string, status domain.RequirementStatus, risk domain.RiskLevel) domain.Requirement {
	return domain.Requirement{ID: category + string(status), Category: category, Status: status, Risk: risk}
}

func TestByCategory_FirstSeenOrderAndZeroes(t *testing.T) {
	reqs := []domain.Requirement{
		req("privacy", domain.RequirementMet, domain.RiskLow),
		req("tax", domain.RequirementNotMet, domain.RiskHigh),
		req("privacy", domain.RequirementPartial, domain.RiskMedium),
		req("aml", domain.RequirementMet, domain.RiskLow),
		req("tax", domain.RequirementNotMet, domain.RiskHigh),
	}
	got := ByCategory(reqs)
	want := []CategoryBreakdown{
		{Category: "privacy", Met: 1, Partial: 1, NotMet: 0},
		{Category: "tax", Met: 0, Partial: 0, NotMet: 2},
		{Category: "aml", Met: 1, Partial: 0, NotMet: 0},
	}
	assert.Equal(t, want, got)
}

func TestByCategory_Empty(t *testing.T) {
	got := ByCategory(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestByRisk(t *testing.T) {
	reqs := []domain.Requirement{
		req("a", domain.RequirementMet, domain.RiskHigh),
		req("a", domain.RequirementMet, domain.RiskHigh),
		req("b", domain.RequirementMet, domain.RiskLow),
	}
	assert.Equal(t, RiskBreakdown{High: 2, Medium: 0, Low: 1}, ByRisk(reqs))
}

func TestByRisk_EmptyHasAllBuckets(t *testing.T) {
	assert.Equal(t, RiskBreakdown{High: 0, Medium: 0, Low: 0}, ByRisk([]domain.Requirement{}))
}

func TestSummarize(t *testing.T) {
	reqs := []domain.Requirement{
		req("a", domain.RequirementMet, domain.RiskLow),
		req("a", domain.RequirementPartial, domain.RiskLow),
		req("a", domain.RequirementNotMet, domain.RiskLow),
		req("a", domain.RequirementMet, domain.RiskLow),
	}
	s := Summarize(reqs)
	assert.Equal(t, RequirementSummary{Total: 4, Met: 2, Partial: 1, NotMet: 1}, s)
	assert.Equal(t, domain.RequirementCounts{Total: 4, Met: 2}, s.Counts())
}

func TestOverview_ExcludesFailed(t *testing.T) {
	run := domain.AnalysisRun{Results: []domain.JurisdictionResult{
		{JurisdictionID: "us", ComplianceScore: 82, Status: domain.StatusPartial, RiskLevel: domain.RiskMedium},
		{JurisdictionID: "uk", ComplianceScore: 91, Status: domain.StatusCompliant, RiskLevel: domain.RiskLow},
		domain.FailedResult("eu", domain.JurisdictionEntry{}, "timeout", run0),
	}}
	o := Overview(run)
	assert.Equal(t, 3, o.Jurisdictions)
	assert.Equal(t, 1, o.Failed)
	assert.Equal(t, 1, o.Compliant)
	assert.Equal(t, 1, o.Partial)
	assert.Equal(t, 0, o.NonCompliant)
	assert.Equal(t, 0, o.HighRisk)
	assert.InDelta(t, 86.5, o.AverageScore, 0.001)
}

func TestOverview_AllFailed(t *testing.T) {
	run := domain.AnalysisRun{Results: []domain.JurisdictionResult{
		domain.FailedResult("eu", domain.JurisdictionEntry{}, "down", run0),
	}}
	o := Overview(run)
	assert.Equal(t, 1, o.Failed)
	assert.Zero(t, o.AverageScore)
}

func genRequirement() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("privacy", "tax", "aml", "labor", ""),
		gen.OneConstOf(domain.RequirementMet, domain.RequirementPartial, domain.RequirementNotMet),
		gen.OneConstOf(domain.RiskLow, domain.RiskMedium, domain.RiskHigh),
	).Map(func(vals []interface{}) domain.Requirement {
		return domain.Requirement{
			Category: vals[0].(string),
			Status:   vals[1].(domain.RequirementStatus),
			Risk:     vals[2].(domain.RiskLevel),
		}
	})
}

func TestAnalyticsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ByCategory and ByRisk are idempotent", prop.ForAll(
		func(reqs []domain.Requirement) bool {
			return assert.ObjectsAreEqual(ByCategory(reqs), ByCategory(reqs)) &&
				ByRisk(reqs) == ByRisk(reqs)
		},
		gen.SliceOf(genRequirement()),
	))

	properties.Property("risk buckets sum to the requirement count", prop.ForAll(
		func(reqs []domain.Requirement) bool {
			r := ByRisk(reqs)
			return r.High+r.Medium+r.Low == len(reqs)
		},
		gen.SliceOf(genRequirement()),
	))

	properties.Property("category buckets sum to the requirement count", prop.ForAll(
		func(reqs []domain.Requirement) bool {
			total := 0
			seen := map[string]bool{}
			for _, c := range ByCategory(reqs) {
				if seen[c.Category] {
					return false
				}
				seen[c.Category] = true
				total += c.Met + c.Partial + c.NotMet
			}
			return total == len(reqs)
		},
		gen.SliceOf(genRequirement()),
	))

	properties.Property("ByCategory does not mutate its input", prop.ForAll(
		func(reqs []domain.Requirement) bool {
			before := slices.Clone(reqs)
			ByCategory(reqs)
			ByRisk(reqs)
			return assert.ObjectsAreEqual(before, reqs)
		},
		gen.SliceOf(genRequirement()),
	))

	properties.TestingRun(t)
}

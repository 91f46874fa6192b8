// Package analytics reduces requirement lists and runs into chart-ready
// aggregates. Every function here is pure.
package analytics

import (
	"math"

	"compliancesync/internal/domain"
)

type CategoryBreakdown struct {
	Category string `json:"category"`
	Met      int    `json:"met"`
	Partial  int    `json:"partial"`
	NotMet   int    `json:"notMet"`
}

type RiskBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// ByCategory counts statuses per category in first-seen category order.
// Requirements with an unrecognized status count toward no bucket but still
// introduce their category.
func ByCategory(reqs []domain.Requirement) []CategoryBreakdown {
	out := []CategoryBreakdown{}
	pos := make(map[string]int)
	for _, r := range reqs {
		i, ok := pos[r.Category]
		if !ok {
			i = len(out)
			pos[r.Category] = i
			out = append(out, CategoryBreakdown{Category: r.Category})
		}
		switch r.Status {
		case domain.RequirementMet:
			out[i].Met++
		case domain.RequirementPartial:
			out[i].Partial++
		case domain.RequirementNotMet:
			out[i].NotMet++
		}
	}
	return out
}

// ByRisk counts requirements per risk level. All three buckets are always
// present.
func ByRisk(reqs []domain.Requirement) RiskBreakdown {
	var out RiskBreakdown
	for _, r := range reqs {
		switch r.Risk {
		case domain.RiskHigh:
			out.High++
		case domain.RiskMedium:
			out.Medium++
		case domain.RiskLow:
			out.Low++
		}
	}
	return out
}

type RequirementSummary struct {
	Total   int `json:"total"`
	Met     int `json:"met"`
	Partial int `json:"partial"`
	NotMet  int `json:"notMet"`
}

// Counts is the denormalized {total, met} shape stored on a result.
func (s RequirementSummary) Counts() domain.RequirementCounts {
	return domain.RequirementCounts{Total: s.Total, Met: s.Met}
}

func Summarize(reqs []domain.Requirement) RequirementSummary {
	s := RequirementSummary{Total: len(reqs)}
	for _, r := range reqs {
		switch r.Status {
		case domain.RequirementMet:
			s.Met++
		case domain.RequirementPartial:
			s.Partial++
		case domain.RequirementNotMet:
			s.NotMet++
		}
	}
	return s
}

// RunOverview summarizes one run for dashboards and report renderers.
type RunOverview struct {
	Jurisdictions int     `json:"jurisdictions"`
	Compliant     int     `json:"compliant"`
	Partial       int     `json:"partial"`
	NonCompliant  int     `json:"nonCompliant"`
	Failed        int     `json:"failed"`
	AverageScore  float64 `json:"averageScore"`
	HighRisk      int     `json:"highRisk"`
}

// Overview tallies a run. Failed jurisdictions are counted only in Failed and
// are excluded from the average score and the status and risk tallies.
func Overview(run domain.AnalysisRun) RunOverview {
	o := RunOverview{Jurisdictions: len(run.Results)}
	sum, scored := 0, 0
	for _, r := range run.Results {
		if r.Failed() {
			o.Failed++
			continue
		}
		switch r.Status {
		case domain.StatusCompliant:
			o.Compliant++
		case domain.StatusPartial:
			o.Partial++
		case domain.StatusNonCompliant:
			o.NonCompliant++
		}
		if r.RiskLevel == domain.RiskHigh {
			o.HighRisk++
		}
		sum += r.ComplianceScore
		scored++
	}
	if scored > 0 {
		o.AverageScore = math.Round(float64(sum)/float64(scored)*10) / 10
	}
	return o
}

package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Core domain models. The HTTP adapter serializes these directly; JSON field
// names are the wire names the UI layer and the external analyzer use.

type RequirementStatus string

const (
	RequirementMet     RequirementStatus = "met"
	RequirementPartial RequirementStatus = "partial"
	RequirementNotMet  RequirementStatus = "not-met"
)

func (s RequirementStatus) Valid() bool {
	switch s {
	case RequirementMet, RequirementPartial, RequirementNotMet:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusPartial      ComplianceStatus = "partial"
	StatusNonCompliant ComplianceStatus = "non-compliant"
)

// CompanyProfile is created by the profile form and read-only to the orchestrator.
type CompanyProfile struct {
	CompanyName          string   `json:"companyName"`
	Description          string   `json:"description,omitempty"`
	CompanySize          string   `json:"companySize,omitempty"`
	Industry             string   `json:"industry,omitempty"`
	Website              string   `json:"website,omitempty"`
	CurrentJurisdictions []string `json:"currentJurisdictions"`
	TargetJurisdictions  []string `json:"targetJurisdictions"`
}

// Validate checks the only precondition the orchestrator owns: at least one
// current jurisdiction. Duplicates are kept.
func (p CompanyProfile) Validate() error {
	if len(p.CurrentJurisdictions) == 0 {
		return &ValidationError{Field: "currentJurisdictions", Msg: "no jurisdictions"}
	}
	for i, j := range p.CurrentJurisdictions {
		if strings.TrimSpace(j) == "" {
			return &ValidationError{Field: "currentJurisdictions", Msg: "empty jurisdiction at position " + strconv.Itoa(i)}
		}
	}
	return nil
}

// RegistrableDomain reduces the profile website to its eTLD+1, or "" when
// there is no usable website.
func (p CompanyProfile) RegistrableDomain() string {
	raw := strings.TrimSpace(p.Website)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

type Requirement struct {
	ID             string            `json:"id"`
	Category       string            `json:"category"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Status         RequirementStatus `json:"status"`
	Risk           RiskLevel         `json:"risk"`
	Recommendation string            `json:"recommendation,omitempty"`
}

// RequirementCounts is the analyzer's denormalized summary of RequirementsList.
type RequirementCounts struct {
	Total int `json:"total"`
	Met   int `json:"met"`
}

type JurisdictionResult struct {
	JurisdictionID   string            `json:"jurisdictionId"`
	JurisdictionName string            `json:"jurisdictionName"`
	Flag             string            `json:"flag,omitempty"`
	ComplianceScore  int               `json:"complianceScore"`
	Status           ComplianceStatus  `json:"status"`
	RiskLevel        RiskLevel         `json:"riskLevel"`
	Requirements     RequirementCounts `json:"requirements"`
	RequirementsList []Requirement     `json:"requirementsList"`
	Summary          string            `json:"summary,omitempty"`
	Recommendations  []string          `json:"recommendations,omitempty"`
	AnalyzedAt       time.Time         `json:"analyzedAt"`
	Error            string            `json:"error,omitempty"`
}

// Failed reports whether the result is an error sentinel.
func (r JurisdictionResult) Failed() bool { return r.Error != "" }

// FailedResult builds the sentinel recorded when analysis of one jurisdiction
// fails: score 0, non-compliant, high risk, no requirements.
func FailedResult(id string, entry JurisdictionEntry, msg string, at time.Time) JurisdictionResult {
	if msg == "" {
		msg = "analysis failed"
	}
	return JurisdictionResult{
		JurisdictionID:   id,
		JurisdictionName: entry.Name,
		Flag:             entry.Flag,
		ComplianceScore:  0,
		Status:           StatusNonCompliant,
		RiskLevel:        RiskHigh,
		Requirements:     RequirementCounts{},
		RequirementsList: []Requirement{},
		AnalyzedAt:       at,
		Error:            msg,
	}
}

// AnalysisRun is one orchestrator invocation: one result per requested
// jurisdiction, in request order.
type AnalysisRun struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	Company   string               `json:"companyName,omitempty"`
	Results   []JurisdictionResult `json:"results"`
}

// Result returns the first result for jurisdictionID.
func (r AnalysisRun) Result(jurisdictionID string) (JurisdictionResult, bool) {
	for _, res := range r.Results {
		if res.JurisdictionID == jurisdictionID {
			return res, true
		}
	}
	return JurisdictionResult{}, false
}

// Check rejects analyzer payloads whose fields are out of range.
func (r JurisdictionResult) Check() error {
	if r.ComplianceScore < 0 || r.ComplianceScore > 100 {
		return fmt.Errorf("complianceScore %d out of range 0-100", r.ComplianceScore)
	}
	switch r.Status {
	case StatusCompliant, StatusPartial, StatusNonCompliant:
	default:
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if !r.RiskLevel.Valid() {
		return fmt.Errorf("unknown riskLevel %q", r.RiskLevel)
	}
	for i, req := range r.RequirementsList {
		if !req.Status.Valid() {
			return fmt.Errorf("requirement %d: unknown status %q", i, req.Status)
		}
		if !req.Risk.Valid() {
			return fmt.Errorf("requirement %d: unknown risk %q", i, req.Risk)
		}
	}
	return nil
}

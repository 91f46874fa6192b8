package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_NoJurisdictions(t *testing.T) {
	err := CompanyProfile{CompanyName: "Acme"}.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Error(), "no jurisdictions")
}

func TestValidate_BlankJurisdiction(t *testing.T) {
	err := CompanyProfile{CurrentJurisdictions: []string{"us", "  "}}.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Msg, "position 1")
}

func TestValidate_DuplicatesAllowed(t *testing.T) {
	err := CompanyProfile{CurrentJurisdictions: []string{"us", "us"}}.Validate()
	assert.NoError(t, err)
}

func TestRegistrableDomain(t *testing.T) {
	cases := map[string]string{
		"":                             "",
		"https://www.Example.co.uk/x":  "example.co.uk",
		"shop.acme.com":                "acme.com",
		"http://localhost:8080":        "localhost",
	}
	for in, want := range cases {
		got := CompanyProfile{Website: in}.RegistrableDomain()
		assert.Equal(t, want, got, "website %q", in)
	}
}

func TestFailedResult_Sentinel(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry, _ := DefaultDirectory().Lookup("eu")
	r := FailedResult("eu", entry, "timeout", at)

	assert.True(t, r.Failed())
	assert.Equal(t, 0, r.ComplianceScore)
	assert.Equal(t, StatusNonCompliant, r.Status)
	assert.Equal(t, RiskHigh, r.RiskLevel)
	assert.Equal(t, RequirementCounts{}, r.Requirements)
	assert.Empty(t, r.RequirementsList)
	assert.Equal(t, "European Union", r.JurisdictionName)
	assert.Equal(t, at, r.AnalyzedAt)
}

func TestFailedResult_EmptyMessage(t *testing.T) {
	r := FailedResult("x", JurisdictionEntry{}, "", time.Time{})
	assert.NotEmpty(t, r.Error)
}

func TestDirectory_LookupFallback(t *testing.T) {
	d := DefaultDirectory()

	us, ok := d.Lookup("US")
	require.True(t, ok)
	assert.Equal(t, "United States", us.Name)

	unknown, ok := d.Lookup("atlantis")
	assert.False(t, ok)
	assert.Equal(t, "atlantis", unknown.Name)
	assert.Equal(t, PlaceholderFlag, unknown.Flag)
}

func TestParseDirectory_Duplicate(t *testing.T) {
	_, err := ParseDirectory([]byte("- {id: us, name: A}\n- {id: US, name: B}\n"))
	assert.Error(t, err)
}

func TestAnalysisRun_Result(t *testing.T) {
	run := AnalysisRun{Results: []JurisdictionResult{{JurisdictionID: "us"}, {JurisdictionID: "eu", ComplianceScore: 7}}}
	r, ok := run.Result("eu")
	require.True(t, ok)
	assert.Equal(t, 7, r.ComplianceScore)
	_, ok = run.Result("jp")
	assert.False(t, ok)
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("disk full")
	var err error = &PersistenceError{RunID: "r1", Err: base}
	assert.ErrorIs(t, err, base)

	err = &PreconditionError{Reason: ReasonAnalyzerUnavailable, Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "analyzer-unavailable")
}

func TestCheck(t *testing.T) {
	ok := JurisdictionResult{ComplianceScore: 82, Status: StatusPartial, RiskLevel: RiskMedium,
		RequirementsList: []Requirement{{Status: RequirementMet, Risk: RiskLow}}}
	assert.NoError(t, ok.Check())

	bad := ok
	bad.ComplianceScore = 101
	assert.Error(t, bad.Check())

	bad = ok
	bad.Status = "great"
	assert.Error(t, bad.Check())

	bad = ok
	bad.RequirementsList = []Requirement{{Status: "done", Risk: RiskLow}}
	assert.Error(t, bad.Check())
}

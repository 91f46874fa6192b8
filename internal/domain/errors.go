package domain

import "fmt"

// ValidationError rejects a run before any work starts. The caller fixes the
// input and retries.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

type PreconditionReason string

const (
	ReasonMissingCredential   PreconditionReason = "missing-credential"
	ReasonAnalyzerUnavailable PreconditionReason = "analyzer-unavailable"
)

// PreconditionError rejects a whole run before any per-jurisdiction call.
type PreconditionError struct {
	Reason PreconditionReason
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precondition %s: %v", e.Reason, e.Err)
	}
	return "precondition " + string(e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// JurisdictionAnalysisError is a single jurisdiction's failure. The runner
// turns it into a sentinel result; it never escapes a run.
type JurisdictionAnalysisError struct {
	JurisdictionID string
	Err            error
}

func (e *JurisdictionAnalysisError) Error() string {
	return fmt.Sprintf("jurisdiction %s: %v", e.JurisdictionID, e.Err)
}

func (e *JurisdictionAnalysisError) Unwrap() error { return e.Err }

// PersistenceError means a completed run could not be saved to history. The
// run itself is still valid for the current session.
type PersistenceError struct {
	RunID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist run %s: %v", e.RunID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

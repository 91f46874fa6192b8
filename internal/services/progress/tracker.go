// Package progress tracks the visible stages of one analysis run.
package progress

import (
	"math"
	"sync"

	"compliancesync/internal/domain"
)

var (
	ErrUnknownStage  = errString("unknown stage")
	ErrInvalidStatus = errString("invalid step status")
	ErrTerminal      = errString("stage already finished")
	ErrBackwards     = errString("stage transition moves backwards")
)

type errString string

func (e errString) Error() string { return string(e) }

// Tracker holds an ordered pipeline of stages. It only moves forward: a stage
// that reached complete or error keeps that status until Reset.
//
// Tracker is safe for concurrent use; a worker advances it while HTTP handlers
// read snapshots.
type Tracker struct {
	mu        sync.Mutex
	steps     []domain.ProgressStep
	index     map[domain.StageID]int
	active    int
	percent   int
	finalized bool
}

func New(stages []domain.StageDefinition) *Tracker {
	t := &Tracker{}
	t.Reset(stages)
	return t
}

// Reset replaces the pipeline with stages, all pending.
func (t *Tracker) Reset(stages []domain.StageDefinition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = make([]domain.ProgressStep, len(stages))
	t.index = make(map[domain.StageID]int, len(stages))
	for i, s := range stages {
		t.steps[i] = domain.ProgressStep{ID: s.ID, Label: s.Label, Status: domain.StepPending}
		t.index[s.ID] = i
	}
	t.active = 0
	t.percent = 0
	t.finalized = false
}

// Advance moves stage id to status. Moving a later stage to processing
// completes any unfinished stage before it, so at most one stage is
// processing. A processing stage may be re-advanced to processing to change
// its description.
func (t *Tracker) Advance(id domain.StageID, status domain.StepStatus, description string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.index[id]
	if !ok {
		return ErrUnknownStage
	}
	step := &t.steps[idx]
	if step.Status.Terminal() {
		return ErrTerminal
	}
	if status == domain.StepPending && step.Status != domain.StepPending {
		return ErrBackwards
	}
	if status == domain.StepProcessing {
		if idx < t.active {
			return ErrBackwards
		}
		for i := t.active; i < idx; i++ {
			if !t.steps[i].Status.Terminal() {
				t.steps[i].Status = domain.StepComplete
			}
		}
		t.active = idx
	}
	step.Status = status
	if description != "" {
		step.Description = description
	}
	t.recompute()
	return nil
}

// Finalize completes every unfinished stage and reports exactly 100 percent.
// Stages already in error stay in error.
func (t *Tracker) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.steps {
		if !t.steps[i].Status.Terminal() {
			t.steps[i].Status = domain.StepComplete
		}
	}
	if n := len(t.steps); n > 0 {
		t.active = n - 1
	}
	t.finalized = true
	t.percent = 100
}

// Percent is round(100 * finished / total), held at 99 until Finalize.
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

func (t *Tracker) ActiveIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// State returns a copy safe to hand to other goroutines.
func (t *Tracker) State() domain.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	steps := make([]domain.ProgressStep, len(t.steps))
	copy(steps, t.steps)
	return domain.ProgressState{Steps: steps, ActiveIndex: t.active, Percent: t.percent}
}

func (t *Tracker) recompute() {
	if t.finalized {
		t.percent = 100
		return
	}
	total := len(t.steps)
	if total == 0 {
		t.percent = 0
		return
	}
	done := 0
	for _, s := range t.steps {
		if s.Status.Terminal() {
			done++
		}
	}
	pct := int(math.Round(100 * float64(done) / float64(total)))
	if pct > 99 {
		pct = 99
	}
	t.percent = pct
}

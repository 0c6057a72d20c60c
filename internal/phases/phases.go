// File: internal/phases/phases.go
// Brief: Fixed five-phase startup sequence types.

// Package phases drives the launcher's fixed startup sequence
// INIT -> VALIDATE -> PREPARE -> LAUNCH -> VERIFY on top of the step
// scheduler, adding whole-phase cache skips and reverse-order rollback when
// a later phase fails.
package phases

import (
	"time"

	"github.com/example/devup/internal/scheduler"
)

// Phase names the five startup phases.
type Phase string

const (
	PhaseInit     Phase = "INIT"
	PhaseValidate Phase = "VALIDATE"
	PhasePrepare  Phase = "PREPARE"
	PhaseLaunch   Phase = "LAUNCH"
	PhaseVerify   Phase = "VERIFY"
)

// Sequence is the fixed phase order. Phases never reorder or drop out; a
// skippable phase only skips its content.
var Sequence = []Phase{PhaseInit, PhaseValidate, PhasePrepare, PhaseLaunch, PhaseVerify}

// Goal timeouts are soft targets: overrunning one logs a warning and nothing
// else.
var goalTimeouts = map[Phase]time.Duration{
	PhaseInit:     2 * time.Second,
	PhaseValidate: 5 * time.Second,
	PhasePrepare:  10 * time.Second,
	PhaseLaunch:   30 * time.Second,
	PhaseVerify:   15 * time.Second,
}

// GoalTimeout returns the phase's soft duration target.
func (p Phase) GoalTimeout() time.Duration {
	return goalTimeouts[p]
}

// Step scopes a startup step to one phase.
type Step struct {
	scheduler.Step
	CanSkip bool
}

// Result is the outcome of one phase.
type Result struct {
	Phase         Phase
	Success       bool
	Duration      time.Duration
	ExecutedSteps []string
	SkippedSteps  []string
	Err           error
}

// Summary aggregates a full sequence run.
type Summary struct {
	TotalElapsed   time.Duration
	UnderTarget    bool
	Succeeded      []string
	Failed         []string
	ExecutedSteps  int
	SkippedSteps   int
	PhaseDurations map[Phase]time.Duration
}

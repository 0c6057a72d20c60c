// File: internal/phases/controller.go
// Brief: Phase sequencing, whole-phase skips, and reverse-order rollback.

package phases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/devup/internal/scheduler"
)

// RollbackFunc compensates a phase whose work must be undone.
type RollbackFunc func(ctx context.Context) error

// Controller owns the fixed phase sequence. Definitions are registered once
// per launcher invocation and never mutated afterwards.
type Controller struct {
	mu        sync.Mutex
	steps     map[Phase][]Step
	rollbacks map[Phase]RollbackFunc

	sched  *scheduler.Scheduler
	logger *zap.Logger

	lastSummary Summary
}

// NewController builds a controller over the given scheduler.
func NewController(sched *scheduler.Scheduler, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		steps:     map[Phase][]Step{},
		rollbacks: map[Phase]RollbackFunc{},
		sched:     sched,
		logger:    logger,
	}
}

// Register appends steps to a phase and makes them known to the scheduler.
func (c *Controller) Register(phase Phase, steps ...Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, step := range steps {
		c.sched.Register(step.Step)
		c.steps[phase] = append(c.steps[phase], step)
	}
}

// RegisterRollback installs the compensating action for a phase.
func (c *Controller) RegisterRollback(phase Phase, fn RollbackFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollbacks[phase] = fn
}

// Steps returns the steps registered for a phase.
func (c *Controller) Steps(phase Phase) []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Step(nil), c.steps[phase]...)
}

// canSkipPhase reports whether an entire phase may be skipped: never INIT,
// and only when every step in the phase is individually cache-skippable.
func (c *Controller) canSkipPhase(ctx context.Context, phase Phase) bool {
	if phase == PhaseInit {
		return false
	}
	steps := c.Steps(phase)
	if len(steps) == 0 {
		return false
	}
	for _, step := range steps {
		if !step.CanSkip || !c.sched.CanSkip(ctx, step.Name) {
			return false
		}
	}
	return true
}

// ExecuteSequence runs the fixed phase order. A fully skippable phase is
// recorded as an all-skipped success; otherwise its steps run in order,
// stopping at the first required failure. A failed phase triggers rollback
// of itself and every earlier completed phase, then the sequence stops.
func (c *Controller) ExecuteSequence(ctx context.Context) map[Phase]Result {
	start := time.Now()
	results := map[Phase]Result{}
	var completed []Phase

	for _, phase := range Sequence {
		res := c.executePhase(ctx, phase)
		results[phase] = res
		if !res.Success {
			c.rollback(ctx, phase, completed)
			break
		}
		completed = append(completed, phase)
	}

	c.recordSummary(results, time.Since(start))
	return results
}

func (c *Controller) executePhase(ctx context.Context, phase Phase) Result {
	start := time.Now()
	res := Result{Phase: phase, Success: true}

	if c.canSkipPhase(ctx, phase) {
		for _, step := range c.Steps(phase) {
			res.SkippedSteps = append(res.SkippedSteps, step.Name)
		}
		res.Duration = time.Since(start)
		c.logger.Info("phase unchanged; skipping",
			zap.String("phase", string(phase)), zap.Int("steps", len(res.SkippedSteps)))
		return res
	}

	for _, step := range c.Steps(phase) {
		stepRes := c.sched.RunStep(ctx, step.Name)
		if stepRes.Cached {
			res.SkippedSteps = append(res.SkippedSteps, step.Name)
			continue
		}
		res.ExecutedSteps = append(res.ExecutedSteps, step.Name)
		if !stepRes.Success && step.Required {
			res.Success = false
			res.Err = fmt.Errorf("phase %s: %w", phase, stepRes.Err)
			break
		}
		if !stepRes.Success {
			c.logger.Warn("optional step failed",
				zap.String("phase", string(phase)), zap.String("step", step.Name),
				zap.Error(stepRes.Err))
		}
	}

	res.Duration = time.Since(start)
	if goal := phase.GoalTimeout(); goal > 0 && res.Duration > goal {
		c.logger.Warn("phase exceeded its goal duration",
			zap.String("phase", string(phase)),
			zap.Duration("elapsed", res.Duration), zap.Duration("goal", goal))
	}
	return res
}

// rollback compensates the failed phase and every earlier completed phase in
// reverse completion order. A rollback's own failure is logged and never
// blocks rolling back the phases before it.
func (c *Controller) rollback(ctx context.Context, failed Phase, completed []Phase) {
	order := append(append([]Phase(nil), completed...), failed)
	for i := len(order) - 1; i >= 0; i-- {
		phase := order[i]
		c.mu.Lock()
		fn := c.rollbacks[phase]
		c.mu.Unlock()
		if fn == nil {
			continue
		}
		c.logger.Info("rolling back phase", zap.String("phase", string(phase)))
		if err := fn(ctx); err != nil {
			c.logger.Warn("rollback failed",
				zap.String("phase", string(phase)), zap.Error(err))
		}
	}
}

func (c *Controller) recordSummary(results map[Phase]Result, elapsed time.Duration) {
	summary := Summary{
		TotalElapsed:   elapsed,
		UnderTarget:    elapsed < scheduler.SoftTarget,
		PhaseDurations: map[Phase]time.Duration{},
	}
	for _, phase := range Sequence {
		res, ok := results[phase]
		if !ok {
			continue
		}
		summary.PhaseDurations[phase] = res.Duration
		if res.Success {
			summary.Succeeded = append(summary.Succeeded, string(phase))
		} else {
			summary.Failed = append(summary.Failed, string(phase))
		}
		summary.ExecutedSteps += len(res.ExecutedSteps)
		summary.SkippedSteps += len(res.SkippedSteps)
	}
	c.mu.Lock()
	c.lastSummary = summary
	c.mu.Unlock()
}

// Summary returns the aggregate of the last ExecuteSequence run.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSummary
}

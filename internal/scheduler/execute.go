// File: internal/scheduler/execute.go
// Brief: Level-wise step execution with per-step timeouts.

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExecuteSequence runs the named steps level by level and returns a result
// per step. Within a level, parallel-eligible steps go through the runner;
// the rest run sequentially in registration order. A required failure in a
// level halts all later levels; steps already dispatched in the failing
// level still finish.
func (s *Scheduler) ExecuteSequence(ctx context.Context, names []string) map[string]Result {
	start := time.Now()
	results := map[string]Result{}
	levels := s.ComputeLevels(names)

	for levelIdx, level := range levels {
		parallel, sequential := s.partition(level)

		var resMu sync.Mutex
		units := make([]func(), 0, len(parallel))
		for _, name := range parallel {
			name := name
			units = append(units, func() {
				res := s.runOne(ctx, name)
				resMu.Lock()
				results[name] = res
				resMu.Unlock()
			})
		}
		if len(units) > 0 {
			s.runner.RunConcurrently(ctx, units)
		}
		for _, name := range sequential {
			results[name] = s.runOne(ctx, name)
		}

		if failed, ok := s.requiredFailure(level, results); ok {
			s.logger.Warn("required step failed; halting later levels",
				zap.String("step", failed), zap.Int("level", levelIdx))
			break
		}
	}

	s.mu.Lock()
	s.lastResults = results
	s.lastElapsed = time.Since(start)
	s.mu.Unlock()
	return results
}

// partition splits a level into parallel-eligible steps and sequential
// steps, the latter preserving registration order.
func (s *Scheduler) partition(level []string) (parallel []string, sequential []string) {
	inLevel := map[string]bool{}
	for _, name := range level {
		inLevel[name] = true
	}
	for _, name := range s.Names() {
		if !inLevel[name] {
			continue
		}
		step, _ := s.Step(name)
		if step.Parallel {
			parallel = append(parallel, name)
		} else {
			sequential = append(sequential, name)
		}
	}
	return parallel, sequential
}

func (s *Scheduler) requiredFailure(level []string, results map[string]Result) (string, bool) {
	for _, name := range level {
		step, _ := s.Step(name)
		if res, ok := results[name]; ok && !res.Success && step.Required {
			return name, true
		}
	}
	return "", false
}

// RunStep executes a single registered step outside a full sequence. The
// phase controller drives its in-order phase execution through this.
func (s *Scheduler) RunStep(ctx context.Context, name string) Result {
	return s.runOne(ctx, name)
}

// runOne executes a single step: cache-skip check, per-step timeout, panic
// recovery. Errors never escape; they become failed results.
func (s *Scheduler) runOne(ctx context.Context, name string) Result {
	step, ok := s.Step(name)
	if !ok {
		return Result{Name: name, Err: fmt.Errorf("step %q is not registered", name)}
	}
	if s.CanSkip(ctx, name) {
		s.logger.Debug("step unchanged; serving from cache", zap.String("step", name))
		return Result{Name: name, Success: true, Cached: true}
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("step panicked: %v", r)
			}
		}()
		done <- step.Run(stepCtx)
	}()

	select {
	case err := <-done:
		res := Result{Name: name, Duration: time.Since(start)}
		if err != nil {
			res.Err = fmt.Errorf("step %s: %w", name, err)
			return res
		}
		res.Success = true
		return res
	case <-stepCtx.Done():
		// Cancellation of the in-flight work is best-effort: the goroutine
		// sees stepCtx but nothing forces it to stop.
		res := Result{Name: name, Duration: time.Since(start)}
		if stepCtx.Err() == context.DeadlineExceeded {
			res.Err = fmt.Errorf("step %s timed out after %s", name, timeout)
		} else {
			res.Err = fmt.Errorf("step %s cancelled: %w", name, stepCtx.Err())
		}
		return res
	}
}

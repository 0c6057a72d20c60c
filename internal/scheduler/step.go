// File: internal/scheduler/step.go
// Brief: Startup step registration and cache-skip decisions.

// Package scheduler registers named startup steps with dependencies and
// executes them level by level: each level only contains steps whose
// dependencies completed in a strictly earlier level, and parallel-eligible
// steps within a level share a bounded worker pool.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultStepTimeout applies when a step declares none.
const DefaultStepTimeout = 30 * time.Second

// Step is an immutable unit of startup work, fixed at registration time.
type Step struct {
	Name      string
	Run       func(ctx context.Context) error
	DependsOn []string
	Parallel  bool
	Timeout   time.Duration
	Required  bool
	CacheKey  string
}

// Result is the outcome of one step execution, recreated per run.
type Result struct {
	Name     string
	Success  bool
	Duration time.Duration
	Err      error
	Cached   bool
}

// SkipChecker answers whether a cache category is unchanged since the last
// successful run. The cache store implements it.
type SkipChecker interface {
	Unchanged(ctx context.Context, category string) bool
}

// Scheduler holds the registered steps and executes selections of them.
type Scheduler struct {
	mu    sync.Mutex
	steps map[string]Step
	order []string

	skip   SkipChecker
	runner Runner
	logger *zap.Logger

	lastResults map[string]Result
	lastElapsed time.Duration
}

// New builds a scheduler. A nil runner defaults to a pool of DefaultWorkers;
// a nil skip checker disables cache skips.
func New(skip SkipChecker, runner Runner, logger *zap.Logger) *Scheduler {
	if runner == nil {
		runner = NewPoolRunner(DefaultWorkers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		steps:  map[string]Step{},
		skip:   skip,
		runner: runner,
		logger: logger,
	}
}

// Register adds a step. The last registration for a name wins.
func (s *Scheduler) Register(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.steps[step.Name]; !exists {
		s.order = append(s.order, step.Name)
	}
	s.steps[step.Name] = step
}

// RegisterAll registers steps in order.
func (s *Scheduler) RegisterAll(steps ...Step) {
	for _, step := range steps {
		s.Register(step)
	}
}

// Step returns a registered step by name.
func (s *Scheduler) Step(name string) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[name]
	return step, ok
}

// Names returns the registered step names in registration order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// CanSkip reports whether a step may be served from cache: it must declare a
// cache key and the key's category predicate must report unchanged.
func (s *Scheduler) CanSkip(ctx context.Context, name string) bool {
	step, ok := s.Step(name)
	if !ok || step.CacheKey == "" || s.skip == nil {
		return false
	}
	return s.skip.Unchanged(ctx, step.CacheKey)
}

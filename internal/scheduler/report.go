// File: internal/scheduler/report.go
// Brief: Timing report for the last executed sequence.

package scheduler

import (
	"sort"
	"time"
)

// SoftTarget is the feedback-only duration goal for a full sequence.
const SoftTarget = 10 * time.Second

// TimingReport summarizes the last ExecuteSequence run.
type TimingReport struct {
	TotalElapsed  time.Duration
	StepDurations map[string]time.Duration
	CachedSteps   []string
	FailedSteps   []string
	Slowest       []SlowStep
	UnderTarget   bool
}

// SlowStep is one entry in the slowest-steps list.
type SlowStep struct {
	Name     string
	Duration time.Duration
}

// TimingReport builds the report from the most recent run.
func (s *Scheduler) TimingReport() TimingReport {
	s.mu.Lock()
	results := s.lastResults
	elapsed := s.lastElapsed
	s.mu.Unlock()

	report := TimingReport{
		TotalElapsed:  elapsed,
		StepDurations: map[string]time.Duration{},
		UnderTarget:   elapsed < SoftTarget,
	}
	var slow []SlowStep
	for name, res := range results {
		report.StepDurations[name] = res.Duration
		if res.Cached {
			report.CachedSteps = append(report.CachedSteps, name)
		}
		if !res.Success {
			report.FailedSteps = append(report.FailedSteps, name)
		}
		slow = append(slow, SlowStep{Name: name, Duration: res.Duration})
	}
	sort.Strings(report.CachedSteps)
	sort.Strings(report.FailedSteps)
	sort.Slice(slow, func(i, j int) bool {
		if slow[i].Duration != slow[j].Duration {
			return slow[i].Duration > slow[j].Duration
		}
		return slow[i].Name < slow[j].Name
	})
	if len(slow) > 5 {
		slow = slow[:5]
	}
	report.Slowest = slow
	return report
}

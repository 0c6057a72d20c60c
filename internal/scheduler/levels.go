// File: internal/scheduler/levels.go
// Brief: Breadth-first dependency leveling with lenient placement.

package scheduler

import "go.uber.org/zap"

// ComputeLevels groups the named steps into execution levels: a step joins
// the first level where every dependency already sits in a strictly earlier
// level. Steps with missing or circular dependencies are force-placed into
// the current level with a warning instead of failing the run; for a local
// environment a best-effort order beats a refusal to start.
func (s *Scheduler) ComputeLevels(names []string) [][]string {
	selected := map[string]bool{}
	var pending []string
	for _, name := range names {
		if selected[name] {
			continue
		}
		if _, ok := s.Step(name); !ok {
			s.logger.Warn("skipping unregistered step", zap.String("step", name))
			continue
		}
		selected[name] = true
		pending = append(pending, name)
	}

	placed := map[string]int{}
	var levels [][]string
	for len(pending) > 0 {
		current := len(levels)
		var level []string
		var rest []string
		for _, name := range pending {
			if s.depsPlaced(name, selected, placed, current) {
				level = append(level, name)
			} else {
				rest = append(rest, name)
			}
		}
		if len(level) == 0 {
			// Remaining steps are stuck on each other (or on a failed
			// placement); run them in this level anyway.
			for _, name := range rest {
				s.logger.Warn("circular or unsatisfiable dependency; forcing step into current level",
					zap.String("step", name), zap.Int("level", current))
			}
			level = rest
			rest = nil
		}
		for _, name := range level {
			placed[name] = current
		}
		levels = append(levels, level)
		pending = rest
	}
	return levels
}

// depsPlaced reports whether every selected dependency of name sits in a
// level strictly before current. Dependencies outside the selection are
// warned about and do not gate placement.
func (s *Scheduler) depsPlaced(name string, selected map[string]bool, placed map[string]int, current int) bool {
	step, _ := s.Step(name)
	for _, dep := range step.DependsOn {
		if !selected[dep] {
			s.logger.Warn("step depends on a step outside this run",
				zap.String("step", name), zap.String("dependency", dep))
			continue
		}
		lvl, ok := placed[dep]
		if !ok || lvl >= current {
			return false
		}
	}
	return true
}

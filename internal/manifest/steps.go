// File: internal/manifest/steps.go
// Brief: Translates manifest services into phase steps.

package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/example/devup/internal/cachestore"
	"github.com/example/devup/internal/phases"
	"github.com/example/devup/internal/scheduler"
)

// ProcessManager starts and stops local services.
type ProcessManager interface {
	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
}

// HealthMonitor reports whether a running service answers its health probe.
type HealthMonitor interface {
	Healthy(ctx context.Context, service string) (bool, error)
}

const defaultLaunchTimeout = 30 * time.Second

// LaunchSteps builds one LAUNCH step per service. depends_on edges become
// step dependencies, and each service gets a cache category keyed to its
// build inputs so an unchanged service is skipped on re-run.
func (m *Manifest) LaunchSteps(pm ProcessManager, cache *cachestore.Store) []phases.Step {
	steps := make([]phases.Step, 0, len(m.Services))
	for _, svc := range m.Services {
		svc := svc
		if cache != nil {
			cache.RegisterPredicate(CacheCategory(svc.Name),
				cachestore.FileDigestPredicate(cache, CacheCategory(svc.Name), svc.Inputs...))
		}
		deps := make([]string, 0, len(svc.DependsOn))
		for _, dep := range svc.DependsOn {
			deps = append(deps, launchStepName(dep))
		}
		steps = append(steps, phases.Step{
			Step: scheduler.Step{
				Name:      launchStepName(svc.Name),
				DependsOn: deps,
				Required:  true,
				Timeout:   defaultLaunchTimeout,
				CacheKey:  CacheCategory(svc.Name),
				Run: func(ctx context.Context) error {
					return pm.Start(ctx, svc.Name)
				},
			},
			CanSkip: true,
		})
	}
	return steps
}

// VerifySteps builds one VERIFY step per service probing its health.
// Verify steps are optional: an unhealthy service is reported, not fatal.
func (m *Manifest) VerifySteps(hm HealthMonitor) []phases.Step {
	steps := make([]phases.Step, 0, len(m.Services))
	for _, svc := range m.Services {
		svc := svc
		steps = append(steps, phases.Step{
			Step: scheduler.Step{
				Name:    verifyStepName(svc.Name),
				Timeout: 10 * time.Second,
				Run: func(ctx context.Context) error {
					ok, err := hm.Healthy(ctx, svc.Name)
					if err != nil {
						return fmt.Errorf("health probe %s: %w", svc.Name, err)
					}
					if !ok {
						return fmt.Errorf("service %s is not healthy", svc.Name)
					}
					return nil
				},
			},
		})
	}
	return steps
}

// Rollback stops every service in reverse name order. Stop errors are
// collected, not short-circuited, so one stuck service does not leave the
// rest running.
func (m *Manifest) Rollback(pm ProcessManager) phases.RollbackFunc {
	return func(ctx context.Context) error {
		var firstErr error
		for i := len(m.Services) - 1; i >= 0; i-- {
			if err := pm.Stop(ctx, m.Services[i].Name); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", m.Services[i].Name, err)
			}
		}
		return firstErr
	}
}

func launchStepName(service string) string { return "launch:" + service }
func verifyStepName(service string) string { return "verify:" + service }

// up.go wires the secret orchestrator, step scheduler, and phase controller
// into the default `devup` / `devup up` run.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/devup/internal/cachestore"
	"github.com/example/devup/internal/config"
	"github.com/example/devup/internal/envfile"
	"github.com/example/devup/internal/logging"
	"github.com/example/devup/internal/manifest"
	"github.com/example/devup/internal/phases"
	"github.com/example/devup/internal/scheduler"
	"github.com/example/devup/internal/secrets"
)

var (
	stepOK     = color.New(color.FgGreen).SprintFunc()
	stepFailed = color.New(color.FgRed).SprintFunc()
	stepWarn   = color.New(color.FgYellow).SprintFunc()
	stepMuted  = color.New(color.Faint).SprintFunc()
)

func newUpCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Resolve secrets and bring the environment up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func runUp(ctx context.Context, opts *config.Options) error {
	if err := opts.Complete(); err != nil {
		return err
	}
	logger, err := logging.New(opts.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cache := openCache(opts, logger)
	if cache != nil {
		defer cache.Close()
	}

	m, err := manifest.Load(opts.ManifestPath, opts.ProjectName)
	if err != nil {
		return err
	}
	runner := manifest.NewComposeRunner(m.Path, m.Project, logger)

	var orchReport secrets.Report
	orch := secrets.NewOrchestrator(secrets.Options{
		Chain:        envfile.NewChain(opts.WorkDir, logger),
		Cache:        cache,
		Sink:         secrets.OSEnv{},
		Remote:       remoteStore(opts, logger),
		RequiredKeys: opts.RequiredKeys,
		Logger:       logger,
	})

	var skip scheduler.SkipChecker
	if cache != nil && !opts.NoCache {
		skip = cache
	}
	sched := scheduler.New(skip, scheduler.NewPoolRunner(opts.Workers), logger)
	ctrl := phases.NewController(sched, logger)

	ctrl.Register(phases.PhaseInit, phases.Step{
		Step: scheduler.Step{
			Name:     "init:secrets",
			Required: true,
			Timeout:  opts.StepTimeout,
			Run: func(ctx context.Context) error {
				orchReport = orch.LoadAll(ctx)
				return nil
			},
		},
	})
	ctrl.Register(phases.PhaseValidate, phases.Step{
		Step: scheduler.Step{
			Name:     "validate:env",
			Required: true,
			Run: func(ctx context.Context) error {
				printSecretWarnings(orchReport)
				return nil
			},
		},
	})
	ctrl.Register(phases.PhasePrepare, phases.Step{
		Step: scheduler.Step{
			Name:     "prepare:manifest",
			Required: true,
			Run: func(ctx context.Context) error {
				if len(m.Services) == 0 {
					return fmt.Errorf("manifest %s defines no services", opts.ManifestPath)
				}
				return nil
			},
		},
	})
	ctrl.Register(phases.PhaseLaunch, m.LaunchSteps(runner, cache)...)
	ctrl.Register(phases.PhaseVerify, m.VerifySteps(runner)...)
	ctrl.RegisterRollback(phases.PhaseLaunch, m.Rollback(runner))

	results := ctrl.ExecuteSequence(ctx)
	printSummary(ctrl.Summary(), sched.TimingReport(), results)

	if cache != nil {
		commitLaunchDigests(ctx, cache, m, results, logger)
	}
	for _, phase := range phases.Sequence {
		if res, ok := results[phase]; ok && !res.Success {
			return fmt.Errorf("startup stopped in phase %s: %w", phase, res.Err)
		}
	}
	return nil
}

func openCache(opts *config.Options, logger *zap.Logger) *cachestore.Store {
	cache, err := cachestore.Open(opts.WorkDir)
	if err != nil {
		logger.Warn("cache unavailable, running without skips", zap.Error(err))
		return nil
	}
	return cache
}

func remoteStore(opts *config.Options, logger *zap.Logger) secrets.RemoteStore {
	if opts.SkipRemote {
		return nil
	}
	var cfg secrets.VaultConfig
	if opts.VaultConfig != "" {
		loaded, err := secrets.LoadVaultConfig(opts.VaultConfig)
		if err != nil {
			logger.Warn("remote secret store disabled", zap.Error(err))
			return nil
		}
		cfg = loaded
	} else if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		cfg = secrets.VaultConfig{Address: addr, Token: os.Getenv("VAULT_TOKEN")}
	} else {
		return nil
	}
	store, err := secrets.NewVaultStore(cfg)
	if err != nil {
		logger.Warn("remote secret store disabled", zap.Error(err))
		return nil
	}
	return store
}

// commitLaunchDigests pins each successfully launched service's input
// digests so the next run can skip it when nothing changed.
func commitLaunchDigests(ctx context.Context, cache *cachestore.Store, m *manifest.Manifest, results map[phases.Phase]phases.Result, logger *zap.Logger) {
	launch, ok := results[phases.PhaseLaunch]
	if !ok || !launch.Success {
		return
	}
	for _, svc := range m.Services {
		if err := cache.CommitCategoryDigest(ctx, manifest.CacheCategory(svc.Name), svc.Inputs...); err != nil {
			logger.Warn("persist service digest", zap.String("service", svc.Name), zap.Error(err))
		}
	}
}

func printSecretWarnings(report secrets.Report) {
	for _, warning := range report.Warnings {
		fmt.Printf("  %s %s\n", stepWarn("!"), warning)
	}
	if report.FromCache {
		fmt.Printf("  %s secrets loaded from cache\n", stepMuted("·"))
	}
}

func printSummary(summary phases.Summary, timing scheduler.TimingReport, results map[phases.Phase]phases.Result) {
	fmt.Println()
	for _, phase := range phases.Sequence {
		res, ok := results[phase]
		if !ok {
			fmt.Printf("  %s %-8s not reached\n", stepMuted("-"), phase)
			continue
		}
		mark := stepOK("✓")
		note := fmt.Sprintf("%d steps", len(res.ExecutedSteps))
		if len(res.SkippedSteps) > 0 {
			note += fmt.Sprintf(", %d skipped", len(res.SkippedSteps))
		}
		if !res.Success {
			mark = stepFailed("✗")
			note = res.Err.Error()
		}
		fmt.Printf("  %s %-8s %-10s %s\n", mark, phase, res.Duration.Round(time.Millisecond), note)
	}

	fmt.Printf("\n  total %s", summary.TotalElapsed.Round(time.Millisecond))
	if summary.UnderTarget {
		fmt.Printf(" %s\n", stepOK("(under target)"))
	} else {
		fmt.Printf(" %s\n", stepWarn("(over target)"))
	}
	if len(timing.Slowest) > 0 {
		fmt.Println("  slowest steps:")
		for _, slow := range timing.Slowest {
			fmt.Printf("    %-30s %s\n", slow.Name, slow.Duration.Round(time.Millisecond))
		}
	}
	if len(timing.FailedSteps) > 0 {
		failed := append([]string(nil), timing.FailedSteps...)
		sort.Strings(failed)
		fmt.Printf("  failed: %s\n", stepFailed(fmt.Sprintf("%v", failed)))
	}
}

// plan.go prints the launch order without starting anything.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/devup/internal/config"
	"github.com/example/devup/internal/manifest"
	"github.com/example/devup/internal/scheduler"
)

func newPlanCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the computed startup levels without launching",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func runPlan(opts *config.Options) error {
	if err := opts.Complete(); err != nil {
		return err
	}
	m, err := manifest.Load(opts.ManifestPath, opts.ProjectName)
	if err != nil {
		return err
	}
	runner := manifest.NewComposeRunner(m.Path, m.Project, zap.NewNop())

	sched := scheduler.New(nil, scheduler.SerialRunner{}, zap.NewNop())
	var names []string
	for _, step := range m.LaunchSteps(runner, nil) {
		sched.Register(step.Step)
		names = append(names, step.Name)
	}

	fmt.Printf("project %s (%d services)\n", m.Project, len(m.Services))
	for i, level := range sched.ComputeLevels(names) {
		fmt.Printf("  level %d: %s\n", i+1, strings.Join(level, ", "))
	}
	return nil
}

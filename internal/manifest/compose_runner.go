// File: internal/manifest/compose_runner.go
// Brief: docker compose backed process manager and health monitor.

package manifest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ComposeRunner starts, stops, and probes services through the docker
// compose CLI. It implements both ProcessManager and HealthMonitor.
type ComposeRunner struct {
	file    string
	project string
	logger  *zap.Logger
}

// NewComposeRunner builds a runner for one compose project.
func NewComposeRunner(file, project string, logger *zap.Logger) *ComposeRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComposeRunner{file: file, project: project, logger: logger}
}

// Start brings one service up detached without cascading to its
// dependencies; ordering is the step scheduler's job.
func (r *ComposeRunner) Start(ctx context.Context, service string) error {
	return r.run(ctx, "up", "-d", "--no-deps", service)
}

// Stop stops one service, leaving its containers in place.
func (r *ComposeRunner) Stop(ctx context.Context, service string) error {
	return r.run(ctx, "stop", service)
}

// Healthy reports whether the service is listed as running.
func (r *ComposeRunner) Healthy(ctx context.Context, service string) (bool, error) {
	out, err := r.output(ctx, "ps", "--status", "running", "--services")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == service {
			return true, nil
		}
	}
	return false, nil
}

func (r *ComposeRunner) run(ctx context.Context, args ...string) error {
	_, err := r.output(ctx, args...)
	return err
}

func (r *ComposeRunner) output(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"compose", "-f", r.file, "-p", r.project}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Debug("docker compose output",
			zap.String("args", strings.Join(args, " ")),
			zap.String("output", strings.TrimSpace(string(out))))
	}
	if err != nil {
		return "", fmt.Errorf("docker %s: %w", strings.Join(full, " "), err)
	}
	return string(out), nil
}

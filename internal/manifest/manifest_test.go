package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/example/devup/internal/scheduler"
)

const sampleCompose = `
services:
  db:
    image: postgres:16
  cache:
    image: redis:7
  api:
    build:
      context: ./api
    depends_on:
      - db
      - cache
  web:
    image: nginx:1.27
    depends_on:
      - api
`

func writeCompose(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compose.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write compose: %v", err)
	}
	return path
}

type fakeProcessManager struct {
	mu      sync.Mutex
	started []string
	stopped []string
	fail    map[string]error
}

func (f *fakeProcessManager) Start(_ context.Context, service string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[service]; err != nil {
		return err
	}
	f.started = append(f.started, service)
	return nil
}

func (f *fakeProcessManager) Stop(_ context.Context, service string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, service)
	return nil
}

type fakeHealthMonitor struct {
	healthy map[string]bool
}

func (f *fakeHealthMonitor) Healthy(_ context.Context, service string) (bool, error) {
	return f.healthy[service], nil
}

func TestLoad(t *testing.T) {
	path := writeCompose(t, sampleCompose)
	m, err := Load(path, "demo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if m.Project != "demo" {
		t.Fatalf("project=%q, want demo", m.Project)
	}
	want := []string{"api", "cache", "db", "web"}
	if got := m.ServiceNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("services=%v, want %v", got, want)
	}

	var api Service
	for _, svc := range m.Services {
		if svc.Name == "api" {
			api = svc
		}
	}
	if !reflect.DeepEqual(api.DependsOn, []string{"cache", "db"}) {
		t.Fatalf("api deps=%v, want [cache db]", api.DependsOn)
	}
	// Build services track the compose file and their Dockerfile.
	if len(api.Inputs) != 2 {
		t.Fatalf("api inputs=%v, want compose file and Dockerfile", api.Inputs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "compose.yaml"), "demo"); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestLaunchStepsOrdering(t *testing.T) {
	path := writeCompose(t, sampleCompose)
	m, err := Load(path, "demo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pm := &fakeProcessManager{}

	sched := scheduler.New(nil, scheduler.SerialRunner{}, zap.NewNop())
	var names []string
	for _, step := range m.LaunchSteps(pm, nil) {
		sched.Register(step.Step)
		names = append(names, step.Name)
	}
	results := sched.ExecuteSequence(context.Background(), names)

	for name, res := range results {
		if !res.Success {
			t.Fatalf("step %s failed: %v", name, res.Err)
		}
	}
	pos := map[string]int{}
	for i, svc := range pm.started {
		pos[svc] = i
	}
	if pos["api"] < pos["db"] || pos["api"] < pos["cache"] {
		t.Fatalf("api started before its dependencies: %v", pm.started)
	}
	if pos["web"] < pos["api"] {
		t.Fatalf("web started before api: %v", pm.started)
	}
}

func TestLaunchStepFailureStopsDependents(t *testing.T) {
	path := writeCompose(t, sampleCompose)
	m, err := Load(path, "demo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pm := &fakeProcessManager{fail: map[string]error{"db": errors.New("port in use")}}

	sched := scheduler.New(nil, scheduler.SerialRunner{}, zap.NewNop())
	var names []string
	for _, step := range m.LaunchSteps(pm, nil) {
		sched.Register(step.Step)
		names = append(names, step.Name)
	}
	results := sched.ExecuteSequence(context.Background(), names)

	if results["launch:db"].Success {
		t.Fatalf("db launch should fail")
	}
	for _, svc := range pm.started {
		if svc == "api" || svc == "web" {
			t.Fatalf("%s started after db failed: %v", svc, pm.started)
		}
	}
}

func TestVerifySteps(t *testing.T) {
	path := writeCompose(t, sampleCompose)
	m, err := Load(path, "demo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	hm := &fakeHealthMonitor{healthy: map[string]bool{"db": true, "cache": true, "api": true}}

	for _, step := range m.VerifySteps(hm) {
		err := step.Run(context.Background())
		if step.Name == "verify:web" {
			if err == nil {
				t.Fatalf("web is unhealthy; verify step should fail")
			}
			continue
		}
		if err != nil {
			t.Fatalf("step %s: %v", step.Name, err)
		}
	}
}

func TestRollbackStopsEverything(t *testing.T) {
	path := writeCompose(t, sampleCompose)
	m, err := Load(path, "demo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pm := &fakeProcessManager{}

	if err := m.Rollback(pm)(context.Background()); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	want := []string{"web", "db", "cache", "api"}
	if !reflect.DeepEqual(pm.stopped, want) {
		t.Fatalf("stopped=%v, want reverse name order %v", pm.stopped, want)
	}
}

func TestCacheCategory(t *testing.T) {
	if got := CacheCategory("web"); got != "manifest:web" {
		t.Fatalf("category=%q", got)
	}
}

// File: internal/config/config.go
// Brief: Flag plumbing and runtime options for devup commands.

// Package config defines the flag plumbing and runtime options shared by
// devup's commands, translating Cobra/Viper flag values into a strongly
// typed struct the orchestrator and phase controller consume.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/pflag"
)

// Options holds all CLI configuration used by the launcher.
type Options struct {
	WorkDir      string
	ManifestPath string
	ProjectName  string
	RequiredKeys []string
	Workers      int
	StepTimeout  time.Duration
	NoCache      bool
	SkipRemote   bool
	VaultConfig  string
	LogLevel     string
}

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	return &Options{
		ManifestPath: "compose.yaml",
		Workers:      defaultWorkers(),
		StepTimeout:  30 * time.Second,
		LogLevel:     "info",
	}
}

// BindFlags attaches launcher flags to the given FlagSet.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ManifestPath, "manifest", "f", o.ManifestPath, "Path to the service manifest (compose file)")
	fs.StringVarP(&o.ProjectName, "project", "p", "", "Project name (defaults to the manifest directory name)")
	fs.StringSliceVar(&o.RequiredKeys, "require", nil, "Environment keys that must resolve to non-placeholder values (repeat or comma-separate)")
	fs.IntVar(&o.Workers, "workers", o.Workers, "Maximum startup steps run concurrently within a level")
	fs.DurationVar(&o.StepTimeout, "step-timeout", o.StepTimeout, "Default per-step timeout")
	fs.BoolVar(&o.NoCache, "no-cache", false, "Ignore cached results and re-run every step")
	fs.BoolVar(&o.SkipRemote, "skip-remote", false, "Do not fetch missing secrets from the remote store")
	fs.StringVar(&o.VaultConfig, "vault-config", "", "Path to the vault store configuration file")
}

// Complete fills derived fields and validates the result.
func (o *Options) Complete() error {
	if o.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		o.WorkDir = wd
	}
	if !filepath.IsAbs(o.ManifestPath) {
		o.ManifestPath = filepath.Join(o.WorkDir, o.ManifestPath)
	}
	if o.ProjectName == "" {
		o.ProjectName = filepath.Base(filepath.Dir(o.ManifestPath))
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	if o.StepTimeout <= 0 {
		return fmt.Errorf("step-timeout must be positive, got %s", o.StepTimeout)
	}
	return nil
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// File: internal/manifest/manifest.go
// Brief: Compose-based service manifest loading.

// Package manifest reads the project's compose file and turns its services
// into launch and verify steps for the phase controller: depends_on edges
// become step dependencies, and each service's build inputs become a cache
// category so unchanged services can be skipped.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// Service is one launchable unit derived from the compose project.
type Service struct {
	Name      string
	DependsOn []string
	// Inputs are the files whose content gates the service's cache skip:
	// the compose file plus the service's Dockerfile when it builds.
	Inputs []string
}

// Manifest is the loaded service set.
type Manifest struct {
	Path     string
	Project  string
	Services []Service
}

// Load reads and validates a compose file.
func Load(path string, projectName string) (*Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	env := make(composetypes.Mapping)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	details := composetypes.ConfigDetails{
		WorkingDir:  filepath.Dir(abs),
		ConfigFiles: []composetypes.ConfigFile{{Filename: abs, Content: data}},
		Environment: env,
	}
	project, err := loader.Load(details, func(o *loader.Options) {
		if projectName != "" {
			o.SetProjectName(projectName, true)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	m := &Manifest{Path: abs, Project: project.Name}
	for name, svc := range project.Services {
		service := Service{Name: name, Inputs: []string{abs}}
		for dep := range svc.DependsOn {
			service.DependsOn = append(service.DependsOn, dep)
		}
		sort.Strings(service.DependsOn)
		if svc.Build != nil {
			dockerfile := svc.Build.Dockerfile
			if dockerfile == "" {
				dockerfile = "Dockerfile"
			}
			service.Inputs = append(service.Inputs,
				filepath.Join(filepath.Dir(abs), svc.Build.Context, dockerfile))
		}
		m.Services = append(m.Services, service)
	}
	sort.Slice(m.Services, func(i, j int) bool {
		return m.Services[i].Name < m.Services[j].Name
	})
	return m, nil
}

// ServiceNames lists the services in sorted order.
func (m *Manifest) ServiceNames() []string {
	out := make([]string, 0, len(m.Services))
	for _, svc := range m.Services {
		out = append(out, svc.Name)
	}
	return out
}

// CacheCategory names the cache-skip category for a service, the
// "dependency manifest changed for service X" predicate.
func CacheCategory(service string) string {
	return "manifest:" + service
}

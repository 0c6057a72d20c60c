// File: internal/secrets/env_sink.go
// Brief: Injected process-environment sink.

package secrets

import (
	"os"
	"sort"
	"sync"
)

// EnvSink is the process-environment surface the orchestrator writes the
// final resolved map through. Only the orchestrator writes to it.
type EnvSink interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	SetAll(values map[string]string) error
}

// OSEnv writes through to the real process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

func (OSEnv) Set(key, value string) error { return os.Setenv(key, value) }

func (OSEnv) SetAll(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := os.Setenv(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// MapEnv is an in-memory sink for tests and dry runs.
type MapEnv struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMapEnv() *MapEnv {
	return &MapEnv{values: map[string]string{}}
}

func (m *MapEnv) Lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MapEnv) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MapEnv) SetAll(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

// Snapshot returns a copy of the sink contents.
func (m *MapEnv) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

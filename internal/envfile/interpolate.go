// File: internal/envfile/interpolate.go
// Brief: ${VAR} interpolation and explicit cycle detection.

package envfile

import (
	"fmt"
	"os"
	"regexp"

	"go.uber.org/zap"
)

var interpPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// maxExpandDepth bounds chained ${A} -> ${B} -> ... expansion. Normal
// resolution does not run the cycle detector; the depth bound guarantees
// termination, leaving circular references as unresolved literals.
const maxExpandDepth = 16

// Resolve substitutes ${VAR} placeholders in every entry. A reference is
// looked up in the accumulated map first (recursively, so chained references
// work), then in the OS environment; otherwise the literal text is kept and
// a warning is logged.
func Resolve(entries map[string]Entry, logger *zap.Logger) map[string]Entry {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolved := make(map[string]Entry, len(entries))
	memo := map[string]string{}
	for k, e := range entries {
		e.Value = expand(entries, k, e.Value, memo, 0, logger)
		resolved[k] = e
	}
	return resolved
}

func expand(entries map[string]Entry, key string, value string, memo map[string]string, depth int, logger *zap.Logger) string {
	if depth >= maxExpandDepth {
		logger.Warn("interpolation depth exceeded; leaving value unresolved",
			zap.String("key", key))
		return value
	}
	return interpPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := interpPattern.FindStringSubmatch(match)[1]
		if cached, ok := memo[name]; ok {
			return cached
		}
		if ref, ok := entries[name]; ok {
			out := expand(entries, name, ref.Value, memo, depth+1, logger)
			memo[name] = out
			return out
		}
		if osVal, ok := os.LookupEnv(name); ok {
			memo[name] = osVal
			return osVal
		}
		logger.Warn("unresolved interpolation reference",
			zap.String("key", key), zap.String("reference", name))
		return match
	})
}

// CheckCycles explicitly detects circular ${VAR} references among the
// entries and reports the first offending variable. It terminates in bounded
// time regardless of graph shape. It is not invoked by Resolve.
func CheckCycles(entries map[string]Entry) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(entries))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("circular interpolation reference involving %q", name)
		case done:
			return nil
		}
		state[name] = visiting
		entry, ok := entries[name]
		if ok {
			for _, m := range interpPattern.FindAllStringSubmatch(entry.Value, -1) {
				ref := m[1]
				if _, inMap := entries[ref]; !inMap {
					continue
				}
				if err := visit(ref); err != nil {
					return err
				}
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range sortedEntryKeys(entries) {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

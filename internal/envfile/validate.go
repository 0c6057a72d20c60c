// File: internal/envfile/validate.go
// Brief: Required-key validation, placeholder detection, and display masking.

package envfile

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ValidationResult reports required-key validation. Warnings never affect
// IsValid.
type ValidationResult struct {
	IsValid     bool
	MissingKeys []string
	InvalidKeys []string
	Warnings    []string
}

// Case-insensitive substrings that mark a value as an unfilled placeholder.
var placeholderMarkers = []string{"your_", "placeholder", "change_me", "todo", "xxx", "***"}

// Validate checks the required keys. A key is missing when absent, invalid
// when empty/whitespace or a placeholder. Short API keys and localhost hosts
// outside local environments produce non-blocking warnings.
func Validate(entries map[string]Entry, required []string) ValidationResult {
	res := ValidationResult{}
	for _, key := range required {
		entry, ok := entries[key]
		if !ok {
			res.MissingKeys = append(res.MissingKeys, key)
			continue
		}
		if strings.TrimSpace(entry.Value) == "" || isPlaceholder(entry.Value) {
			res.InvalidKeys = append(res.InvalidKeys, key)
		}
	}
	sort.Strings(res.MissingKeys)
	sort.Strings(res.InvalidKeys)

	environment := strings.ToLower(Lookup(entries, "ENVIRONMENT", os.Getenv("ENVIRONMENT")))
	for _, key := range sortedEntryKeys(entries) {
		entry := entries[key]
		if strings.Contains(key, "API_KEY") && entry.Value != "" && len(entry.Value) < 10 {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s looks too short for an API key (%d chars)", key, len(entry.Value)))
		}
		if strings.HasSuffix(key, "_HOST") && strings.Contains(entry.Value, "localhost") {
			if environment == "staging" || environment == "production" {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s points at localhost while ENVIRONMENT=%s", key, environment))
			}
		}
	}

	res.IsValid = len(res.MissingKeys) == 0 && len(res.InvalidKeys) == 0
	return res
}

func isPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Mask renders a secret value for display without revealing it.
func Mask(value string) string {
	switch {
	case len(value) > 8:
		return value[:3] + "***" + value[len(value)-3:]
	case len(value) >= 4:
		return value[:2] + "***"
	default:
		return "***"
	}
}

func sortedEntryKeys(entries map[string]Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

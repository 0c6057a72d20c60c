// File: internal/envfile/envfile.go
// Brief: Layered env-file loading with whole-value override per key.

// Package envfile resolves the launcher's configuration values from layered
// sources: .env, .env.local, and an allow-listed slice of the OS environment.
// Later layers overwrite earlier ones per key; values may reference each
// other with ${VAR} interpolation.
package envfile

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Source records where a resolved value came from.
type Source string

const (
	SourceEnvFile  Source = "env_file"
	SourceEnvLocal Source = "env_local"
	SourceOSEnv    Source = "os_environment"
	SourceRemote   Source = "remote_secret"
	SourceDefault  Source = "default"
)

// Entry is a single resolved configuration value with provenance.
type Entry struct {
	Key    string
	Value  string
	Source Source
}

var keyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Only environment variables with these prefixes are captured from the OS
// environment into the fallback chain, so unrelated shell state does not
// leak into launched services.
var osEnvPrefixes = []string{
	"OPENAI_", "ANTHROPIC_", "GOOGLE_", "GCP_", "AWS_", "AZURE_",
	"GITHUB_", "GITLAB_", "SLACK_", "STRIPE_", "HUGGINGFACE_",
	"OLLAMA_", "WEAVIATE_", "REDIS_", "POSTGRES_", "VAULT_",
	"JWT_", "OAUTH_", "APP_",
}

var osEnvExact = []string{"ENVIRONMENT", "PORT"}

// Chain is an ordered set of configuration sources. Load applies them lowest
// priority first so each layer fully overwrites same-key entries below it.
type Chain struct {
	EnvFile      string
	EnvLocalFile string
	Logger       *zap.Logger
}

// NewChain builds a chain over the conventional .env / .env.local pair
// rooted at dir.
func NewChain(dir string, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	return &Chain{
		EnvFile:      dir + "/.env",
		EnvLocalFile: dir + "/.env.local",
		Logger:       logger,
	}
}

// SourceFiles lists the files the chain reads, for cache invalidation.
func (c *Chain) SourceFiles() []string {
	return []string{c.EnvFile, c.EnvLocalFile}
}

// Load reads the fallback chain: .env (lowest), then .env.local, then the
// allow-listed OS environment (highest). Missing files contribute nothing.
func (c *Chain) Load() map[string]Entry {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := map[string]Entry{}
	for k, v := range ParseFile(c.EnvFile, logger) {
		entries[k] = Entry{Key: k, Value: v, Source: SourceEnvFile}
	}
	for k, v := range ParseFile(c.EnvLocalFile, logger) {
		entries[k] = Entry{Key: k, Value: v, Source: SourceEnvLocal}
	}
	for k, v := range osEnviron() {
		entries[k] = Entry{Key: k, Value: v, Source: SourceOSEnv}
	}
	return entries
}

// ParseFile reads a KEY=value file. Lines that are blank, comments, or do not
// look like an uppercase-identifier assignment are skipped, never fatal.
// A missing file yields an empty map.
func ParseFile(path string, logger *zap.Logger) map[string]string {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		return out
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			logger.Debug("skipping malformed env line",
				zap.String("file", path), zap.Int("line", lineNo))
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if !keyPattern.MatchString(key) {
			logger.Debug("skipping env line with non-identifier key",
				zap.String("file", path), zap.Int("line", lineNo))
			continue
		}
		out[key] = normalizeValue(line[idx+1:])
	}
	return out
}

// normalizeValue trims whitespace, strips one layer of matching quotes, and
// unescapes the common sequences.
func normalizeValue(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			v = v[1 : len(v)-1]
		}
	}
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\t`, "\t",
		`\"`, `"`,
		`\'`, `'`,
	)
	return replacer.Replace(v)
}

func osEnviron() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		idx := strings.Index(kv, "=")
		if idx <= 0 {
			continue
		}
		key := kv[:idx]
		if !osEnvAllowed(key) {
			continue
		}
		out[key] = kv[idx+1:]
	}
	return out
}

func osEnvAllowed(key string) bool {
	for _, exact := range osEnvExact {
		if key == exact {
			return true
		}
	}
	for _, prefix := range osEnvPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Values flattens entries to a plain key/value map.
func Values(entries map[string]Entry) map[string]string {
	out := make(map[string]string, len(entries))
	for k, e := range entries {
		out[k] = e.Value
	}
	return out
}

// Lookup returns the value for key or the caller-supplied default.
func Lookup(entries map[string]Entry, key string, fallback string) string {
	if e, ok := entries[key]; ok {
		return e.Value
	}
	return fallback
}

package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func entriesFrom(values map[string]string) map[string]Entry {
	out := make(map[string]Entry, len(values))
	for k, v := range values {
		out[k] = Entry{Key: k, Value: v, Source: SourceEnvFile}
	}
	return out
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]string
		key    string
		want   string
	}{
		{
			name:   "simple reference",
			values: map[string]string{"APP_HOST": "localhost", "APP_URL": "http://${APP_HOST}:8000"},
			key:    "APP_URL",
			want:   "http://localhost:8000",
		},
		{
			name:   "chained reference",
			values: map[string]string{"A_VAL": "foo", "B_VAL": "${A_VAL}/bar", "C_VAL": "${B_VAL}/baz"},
			key:    "C_VAL",
			want:   "foo/bar/baz",
		},
		{
			name:   "unknown reference kept literally",
			values: map[string]string{"APP_URL": "http://${NO_SUCH_HOST}:8000"},
			key:    "APP_URL",
			want:   "http://${NO_SUCH_HOST}:8000",
		},
		{
			name:   "multiple references in one value",
			values: map[string]string{"A_VAL": "x", "B_VAL": "y", "APP_PAIR": "${A_VAL}-${B_VAL}"},
			key:    "APP_PAIR",
			want:   "x-y",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolved := Resolve(entriesFrom(tc.values), zap.NewNop())
			if got := resolved[tc.key].Value; got != tc.want {
				t.Fatalf("%s=%q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestResolveUsesFinalLayeredValue(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("APP_HOST=localhost\nAPP_URL=http://${APP_HOST}:8000\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"),
		[]byte("APP_HOST=db.internal\n"), 0o600); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}

	resolved := Resolve(NewChain(dir, zap.NewNop()).Load(), zap.NewNop())

	// The reference must see the override, not the layer it was defined in.
	if got := resolved["APP_URL"].Value; got != "http://db.internal:8000" {
		t.Fatalf("APP_URL=%q, want the .env.local override interpolated", got)
	}
}

func TestResolveUsesOSEnvOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("REDIS_HOST=localhost\nAPP_CACHE_URL=redis://${REDIS_HOST}:6379\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("REDIS_HOST", "redis.dev")

	resolved := Resolve(NewChain(dir, zap.NewNop()).Load(), zap.NewNop())

	if got := resolved["APP_CACHE_URL"].Value; got != "redis://redis.dev:6379" {
		t.Fatalf("APP_CACHE_URL=%q, want the OS override interpolated", got)
	}
}

func TestResolveOSEnvFallback(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	resolved := Resolve(entriesFrom(map[string]string{"APP_TOKEN": "${GITHUB_TOKEN}"}), zap.NewNop())
	if got := resolved["APP_TOKEN"].Value; got != "ghp_test" {
		t.Fatalf("APP_TOKEN=%q, want ghp_test", got)
	}
}

func TestResolveCircularTerminates(t *testing.T) {
	entries := entriesFrom(map[string]string{
		"A_VAL": "${B_VAL}",
		"B_VAL": "${A_VAL}",
	})
	resolved := Resolve(entries, zap.NewNop())
	// Depth-bounded expansion must finish; the values stay unresolved.
	if !strings.Contains(resolved["A_VAL"].Value, "VAL}") {
		t.Fatalf("A_VAL=%q, expected unresolved placeholder", resolved["A_VAL"].Value)
	}
}

func TestCheckCycles(t *testing.T) {
	cases := []struct {
		name    string
		values  map[string]string
		wantErr bool
	}{
		{
			name:   "acyclic chain",
			values: map[string]string{"A_VAL": "x", "B_VAL": "${A_VAL}", "C_VAL": "${B_VAL}"},
		},
		{
			name:    "two-node cycle",
			values:  map[string]string{"A_VAL": "${B_VAL}", "B_VAL": "${A_VAL}"},
			wantErr: true,
		},
		{
			name:    "self reference",
			values:  map[string]string{"A_VAL": "prefix-${A_VAL}"},
			wantErr: true,
		},
		{
			name:   "reference to absent variable",
			values: map[string]string{"A_VAL": "${NOT_DEFINED}"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckCycles(entriesFrom(tc.values))
			if tc.wantErr && err == nil {
				t.Fatalf("expected cycle error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

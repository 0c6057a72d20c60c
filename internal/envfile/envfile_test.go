package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestChainPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "APP_NAME=base\nAPP_PORT=8000\n")
	writeFile(t, dir, ".env.local", "APP_PORT=9000\n")
	t.Setenv("APP_PORT", "9999")
	t.Setenv("HOME_BREW_UNRELATED", "noise")

	entries := NewChain(dir, zap.NewNop()).Load()

	if got := entries["APP_NAME"]; got.Value != "base" || got.Source != SourceEnvFile {
		t.Fatalf("APP_NAME=%+v, want base from env_file", got)
	}
	if got := entries["APP_PORT"]; got.Value != "9999" || got.Source != SourceOSEnv {
		t.Fatalf("APP_PORT=%+v, want 9999 from os_environment", got)
	}
	if _, ok := entries["HOME_BREW_UNRELATED"]; ok {
		t.Fatalf("unrelated OS variable leaked into the chain")
	}
}

func TestChainLocalOverridesBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "REDIS_HOST=localhost\nREDIS_PORT=6379\n")
	writeFile(t, dir, ".env.local", "REDIS_HOST=redis.dev\n")

	entries := NewChain(dir, zap.NewNop()).Load()

	if got := entries["REDIS_HOST"]; got.Value != "redis.dev" || got.Source != SourceEnvLocal {
		t.Fatalf("REDIS_HOST=%+v, want redis.dev from env_local", got)
	}
	if got := entries["REDIS_PORT"]; got.Value != "6379" {
		t.Fatalf("REDIS_PORT=%q, want 6379", got.Value)
	}
}

func TestParseFile(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    map[string]string
	}{
		{
			name:    "comments and blanks skipped",
			content: "# config\n\nAPP_NAME=demo\n  # indented comment\n",
			want:    map[string]string{"APP_NAME": "demo"},
		},
		{
			name:    "value keeps later equals",
			content: "JWT_SIGNING_KEY=abc=def==\n",
			want:    map[string]string{"JWT_SIGNING_KEY": "abc=def=="},
		},
		{
			name:    "quotes stripped once",
			content: "APP_A=\"quoted\"\nAPP_B='single'\nAPP_C=\"\\\"inner\\\"\"\n",
			want:    map[string]string{"APP_A": "quoted", "APP_B": "single", "APP_C": `"inner"`},
		},
		{
			name:    "escapes unescaped",
			content: `APP_MSG="line1\nline2"` + "\n",
			want:    map[string]string{"APP_MSG": "line1\nline2"},
		},
		{
			name:    "malformed keys dropped",
			content: "lower_case=no\n1BAD=no\nAPP_OK=yes\nNOEQUALS\n",
			want:    map[string]string{"APP_OK": "yes"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), ".env", tc.content)
			got := ParseFile(path, zap.NewNop())
			if len(got) != len(tc.want) {
				t.Fatalf("parsed %d keys, want %d: %v", len(got), len(tc.want), got)
			}
			for key, want := range tc.want {
				if got[key] != want {
					t.Fatalf("%s=%q, want %q", key, got[key], want)
				}
			}
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	got := ParseFile(filepath.Join(t.TempDir(), ".env"), zap.NewNop())
	if len(got) != 0 {
		t.Fatalf("expected empty map for absent file, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	entries := map[string]Entry{
		"OPENAI_API_KEY":  {Key: "OPENAI_API_KEY", Value: "your_api_key_here", Source: SourceEnvFile},
		"JWT_SIGNING_KEY": {Key: "JWT_SIGNING_KEY", Value: "f3a9c2d81b470e6a5d2c91b8e04f7a63", Source: SourceEnvLocal},
		"APP_BLANK":       {Key: "APP_BLANK", Value: "   ", Source: SourceEnvFile},
	}
	res := Validate(entries, []string{"OPENAI_API_KEY", "JWT_SIGNING_KEY", "APP_BLANK", "ABSENT_KEY"})

	if res.IsValid {
		t.Fatalf("expected validation failure")
	}
	if len(res.MissingKeys) != 1 || res.MissingKeys[0] != "ABSENT_KEY" {
		t.Fatalf("missing=%v, want [ABSENT_KEY]", res.MissingKeys)
	}
	if len(res.InvalidKeys) != 2 {
		t.Fatalf("invalid=%v, want placeholder and blank keys", res.InvalidKeys)
	}
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	entries := map[string]Entry{
		"STRIPE_API_KEY": {Key: "STRIPE_API_KEY", Value: "short", Source: SourceEnvFile},
	}
	res := Validate(entries, []string{"STRIPE_API_KEY"})
	if !res.IsValid {
		t.Fatalf("short key should warn, not invalidate: %+v", res)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a short-key warning")
	}
}

func TestMask(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"sk-abcdef12345", "sk-***345"},
		{"12345678", "12***"},
		{"1234", "12***"},
		{"abc", "***"},
		{"", "***"},
	}
	for _, tc := range cases {
		if got := Mask(tc.value); got != tc.want {
			t.Fatalf("Mask(%q)=%q, want %q", tc.value, got, tc.want)
		}
	}
}

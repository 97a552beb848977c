package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"build.max_context_files", cfg.Build.MaxContextFiles, 4},
		{"debug.max_iterations", cfg.Debug.MaxIterations, 50},
		{"debug.min_iterations", cfg.Debug.MinIterations, 20},
		{"debug.errors_factor", cfg.Debug.ErrorsFactor, 0.0},
		{"debug.policy", cfg.Debug.Policy, "ERRORS_DIFFERENT_FROM_BEFORE"},
		{"debug.dry_run", cfg.Debug.DryRun, false},
		{"llm.model", cfg.LLM.Model, "gpt-4o-mini"},
		{"llm.api_key_env", cfg.LLM.APIKeyEnv, "OPENAI_API_KEY"},
		{"retry.max_attempts", cfg.Retry.MaxAttempts, 3},
		{"retry.wait", cfg.Retry.Wait, "exponential"},
		{"retry.seconds", cfg.Retry.Seconds, 1.0},
		{"retry.max_seconds", cfg.Retry.MaxSeconds, 60.0},
		{"tui.accent_color", cfg.TUI.AccentColor, DefaultAccentColor},
		{"notifications.on_error", cfg.Notifications.OnError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[project]
name = "TestProject"

[build]
command = "mvn -B clean compile"
parser = "python3 parse_maven.py"
max_context_files = 2

[debug]
max_iterations = 30
min_iterations = 10
errors_factor = 1.5
policy = "ERRORS_NOT_A_SWAP"
timeout_minutes = 90
dry_run = true

[llm]
model = "gpt-4o"
base_url = "http://localhost:8000/v1"
api_key_env = "MY_KEY"
max_tokens = 4096
temperature = 0.2

[retry]
max_attempts = 5
wait = "fixed"
seconds = 10.0
`
		path := filepath.Join(dir, "sdfix.toml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		tests := []struct {
			name string
			got  any
			want any
		}{
			{"project.name", cfg.Project.Name, "TestProject"},
			{"build.command", cfg.Build.Command, "mvn -B clean compile"},
			{"build.parser", cfg.Build.Parser, "python3 parse_maven.py"},
			{"build.max_context_files", cfg.Build.MaxContextFiles, 2},
			{"debug.max_iterations", cfg.Debug.MaxIterations, 30},
			{"debug.min_iterations", cfg.Debug.MinIterations, 10},
			{"debug.errors_factor", cfg.Debug.ErrorsFactor, 1.5},
			{"debug.policy", cfg.Debug.Policy, "ERRORS_NOT_A_SWAP"},
			{"debug.timeout_minutes", cfg.Debug.TimeoutMinutes, 90},
			{"debug.dry_run", cfg.Debug.DryRun, true},
			{"llm.model", cfg.LLM.Model, "gpt-4o"},
			{"llm.base_url", cfg.LLM.BaseURL, "http://localhost:8000/v1"},
			{"llm.api_key_env", cfg.LLM.APIKeyEnv, "MY_KEY"},
			{"llm.max_tokens", cfg.LLM.MaxTokens, 4096},
			{"retry.max_attempts", cfg.Retry.MaxAttempts, 5},
			{"retry.wait", cfg.Retry.Wait, "fixed"},
			{"retry.seconds", cfg.Retry.Seconds, 10.0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.want {
					t.Errorf("got %v, want %v", tt.got, tt.want)
				}
			})
		}
	})

	t.Run("partial config uses defaults", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[project]
name = "Partial"

[build]
command = "go build ./..."
parser = "parse-go-errors"
`
		path := filepath.Join(dir, "sdfix.toml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		if cfg.Project.Name != "Partial" {
			t.Errorf("project.name: got %q, want %q", cfg.Project.Name, "Partial")
		}
		if cfg.Debug.MaxIterations != 50 {
			t.Errorf("debug.max_iterations: got %d, want %d (default)", cfg.Debug.MaxIterations, 50)
		}
		if cfg.Retry.MaxAttempts != 3 {
			t.Errorf("retry.max_attempts: got %d, want %d (default)", cfg.Retry.MaxAttempts, 3)
		}
	})

	t.Run("unknown keys return error", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[debug]
max_iteration = 10
`
		path := filepath.Join(dir, "sdfix.toml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "unknown keys") {
			t.Errorf("expected unknown-keys error, got %v", err)
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := Load("/nonexistent/sdfix.toml")
		if err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid toml returns error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sdfix.toml")
		if err := os.WriteFile(path, []byte("not valid [[[ toml"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := Load(path)
		if err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}

func TestLoadAutoDiscovery(t *testing.T) {
	t.Run("finds sdfix.toml in parent directory", func(t *testing.T) {
		root := t.TempDir()
		child := filepath.Join(root, "sub", "dir")
		if err := os.MkdirAll(child, 0755); err != nil {
			t.Fatal(err)
		}

		content := `[project]
name = "FoundIt"
`
		if err := os.WriteFile(filepath.Join(root, "sdfix.toml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		origDir, _ := os.Getwd()
		t.Cleanup(func() { os.Chdir(origDir) })
		if err := os.Chdir(child); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Project.Name != "FoundIt" {
			t.Errorf("project.name: got %q, want %q", cfg.Project.Name, "FoundIt")
		}
	})

	t.Run("returns error when sdfix.toml not found anywhere", func(t *testing.T) {
		dir := t.TempDir()
		origDir, _ := os.Getwd()
		t.Cleanup(func() { os.Chdir(origDir) })
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}

		_, err := Load("")
		if err == nil {
			t.Error("expected error when sdfix.toml not found")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Build.Command = "mvn -B clean compile"
		cfg.Build.Parser = "python3 parse_maven.py"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		cfg := valid()
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"empty build command", func(c *Config) { c.Build.Command = "" }, "build.command"},
		{"empty parser", func(c *Config) { c.Build.Parser = "" }, "build.parser"},
		{"zero max iterations", func(c *Config) { c.Debug.MaxIterations = 0 }, "debug.max_iterations"},
		{"negative errors factor", func(c *Config) { c.Debug.ErrorsFactor = -1 }, "debug.errors_factor"},
		{"unknown policy", func(c *Config) { c.Debug.Policy = "ERRORS_WHATEVER" }, "debug.policy"},
		{"bad retry wait", func(c *Config) { c.Retry.Wait = "cubic" }, "retry"},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry"},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"bad accent color", func(c *Config) { c.TUI.AccentColor = "purple" }, "tui.accent_color"},
		{"bad notification url", func(c *Config) { c.Notifications.URL = "ntfy.sh/topic" }, "notifications.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestInitFile(t *testing.T) {
	t.Run("creates sdfix.toml", func(t *testing.T) {
		dir := t.TempDir()
		path, err := InitFile(dir)
		if err != nil {
			t.Fatal(err)
		}

		if filepath.Base(path) != "sdfix.toml" {
			t.Errorf("expected sdfix.toml, got %s", filepath.Base(path))
		}

		// Verify it's valid TOML by loading it
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("generated file is not valid: %v", err)
		}
		if cfg.LLM.Model != "gpt-4o-mini" {
			t.Errorf("default model: got %q, want %q", cfg.LLM.Model, "gpt-4o-mini")
		}
	})

	t.Run("refuses to overwrite existing", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sdfix.toml")
		if err := os.WriteFile(path, []byte("existing"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := InitFile(dir)
		if err == nil {
			t.Error("expected error when sdfix.toml already exists")
		}
	})
}

// Package config parses sdfix.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/amazon-science/SDFeedback/internal/progress"
	"github.com/amazon-science/SDFeedback/internal/retry"
)

// DefaultAccentColor is the default TUI accent color (indigo).
const DefaultAccentColor = "#7D56F4"

// hexColorRe matches a 6-digit hex color string like "#7D56F4".
var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config is the top-level sdfix.toml configuration.
type Config struct {
	Project       ProjectConfig       `toml:"project"`
	Build         BuildConfig         `toml:"build"`
	Debug         DebugConfig         `toml:"debug"`
	LLM           LLMConfig           `toml:"llm"`
	Retry         RetryConfig         `toml:"retry"`
	TUI           TUIConfig           `toml:"tui"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	Name string `toml:"name"`
}

// BuildConfig controls the build tool invocation and error extraction.
// Command is run through the shell in the repository root; Parser receives
// the failed build's output on stdin and must print a JSON array of
// structured errors.
type BuildConfig struct {
	Command         string `toml:"command"`
	Parser          string `toml:"parser"`
	MaxContextFiles int    `toml:"max_context_files"`
}

// DebugConfig controls the fix loop.
type DebugConfig struct {
	MaxIterations  int     `toml:"max_iterations"`
	MinIterations  int     `toml:"min_iterations"`
	ErrorsFactor   float64 `toml:"errors_factor"` // 0 = fixed budget of max_iterations
	Policy         string  `toml:"policy"`
	TimeoutMinutes int     `toml:"timeout_minutes"` // 0 = no deadline
	DryRun         bool    `toml:"dry_run"`
}

// LLMConfig controls the model endpoint.
type LLMConfig struct {
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url"`
	APIKeyEnv         string  `toml:"api_key_env"`
	MaxTokens         int     `toml:"max_tokens"`
	Temperature       float64 `toml:"temperature"`
	MaxFeedbackRounds int     `toml:"max_feedback_rounds"` // conversation turns before restarting fresh
}

// RetryConfig controls retries of failed model calls.
type RetryConfig struct {
	MaxAttempts int     `toml:"max_attempts"`
	Wait        string  `toml:"wait"` // "fixed" or "exponential"
	Seconds     float64 `toml:"seconds"`
	MinSeconds  float64 `toml:"min_seconds"`
	MaxSeconds  float64 `toml:"max_seconds"`
}

// TUIConfig controls the terminal UI appearance.
type TUIConfig struct {
	AccentColor  string `toml:"accent_color"`
	LogRetention int    `toml:"log_retention"` // number of trajectories to keep; 0 = unlimited
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL        string `toml:"url"`
	OnAccept   bool   `toml:"on_accept"`
	OnError    bool   `toml:"on_error"`
	OnComplete bool   `toml:"on_complete"`
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Build.Command == "" {
		errs = append(errs, fmt.Errorf("build.command must not be empty"))
	}
	if c.Build.Parser == "" {
		errs = append(errs, fmt.Errorf("build.parser must not be empty"))
	}
	if c.Build.MaxContextFiles < 0 {
		errs = append(errs, fmt.Errorf("build.max_context_files must be >= 0 (0 = no extra context)"))
	}

	if c.Debug.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("debug.max_iterations must be >= 1"))
	}
	if c.Debug.MinIterations < 0 {
		errs = append(errs, fmt.Errorf("debug.min_iterations must be >= 0"))
	}
	if c.Debug.ErrorsFactor < 0 {
		errs = append(errs, fmt.Errorf("debug.errors_factor must be >= 0 (0 = fixed budget)"))
	}
	if c.Debug.TimeoutMinutes < 0 {
		errs = append(errs, fmt.Errorf("debug.timeout_minutes must be >= 0 (0 = no deadline)"))
	}
	if !progress.Policy(c.Debug.Policy).Valid() {
		errs = append(errs, fmt.Errorf("debug.policy must be one of %s", joinPolicies()))
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be >= 0 (0 = provider default)"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be in [0, 2]"))
	}
	if c.LLM.MaxFeedbackRounds < 0 {
		errs = append(errs, fmt.Errorf("llm.max_feedback_rounds must be >= 0 (0 = default)"))
	}

	if c.TUI.AccentColor != "" && !hexColorRe.MatchString(c.TUI.AccentColor) {
		errs = append(errs, fmt.Errorf("tui.accent_color must be a hex color (e.g. \"#7D56F4\")"))
	}
	if c.TUI.LogRetention < 0 {
		errs = append(errs, fmt.Errorf("tui.log_retention must be >= 0 (0 = unlimited)"))
	}

	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	return errors.Join(errs...)
}

// RetryPolicy converts the [retry] section into the policy used by the
// executor.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Wait:        retry.WaitKind(c.Retry.Wait),
		Seconds:     c.Retry.Seconds,
		MinSeconds:  c.Retry.MinSeconds,
		MaxSeconds:  c.Retry.MaxSeconds,
	}
}

func joinPolicies() string {
	names := make([]string, 0, len(progress.Policies()))
	for _, p := range progress.Policies() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Project: ProjectConfig{Name: ""},
		Build: BuildConfig{
			Command:         "",
			Parser:          "",
			MaxContextFiles: 4,
		},
		Debug: DebugConfig{
			MaxIterations:  50,
			MinIterations:  20,
			ErrorsFactor:   0,
			Policy:         string(progress.ErrorsDifferentFromBefore),
			TimeoutMinutes: 0,
			DryRun:         false,
		},
		LLM: LLMConfig{
			Model:             "gpt-4o-mini",
			BaseURL:           "",
			APIKeyEnv:         "OPENAI_API_KEY",
			MaxTokens:         0,
			Temperature:       0,
			MaxFeedbackRounds: 8,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Wait:        string(retry.WaitExponential),
			Seconds:     1,
			MinSeconds:  1,
			MaxSeconds:  60,
		},
		TUI: TUIConfig{
			AccentColor:  DefaultAccentColor,
			LogRetention: 20,
		},
		Notifications: NotificationsConfig{
			URL:        "",
			OnAccept:   false,
			OnError:    true,
			OnComplete: true,
		},
	}
}

// Load reads sdfix.toml from the given path. If path is empty, it walks up
// from the current working directory looking for sdfix.toml. Returns an error
// if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = DetectProjectName(filepath.Dir(path))
	}

	return &cfg, nil
}

// findConfig walks up from the current directory looking for sdfix.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, "sdfix.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: sdfix.toml not found (searched up from %s)", dir)
		}
		dir = parent
	}
}

// InitFile writes a default sdfix.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, "sdfix.toml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: sdfix.toml already exists at %s", path)
	}

	content := `# sdfix.toml - build-fix loop configuration
# Place this file in the root of the repository to fix.

[project]
name = ""

[build]
command = ""           # build command, run through the shell in the repo root
parser = ""            # reads failed build output on stdin, prints JSON errors
max_context_files = 4  # extra error files included in each prompt; 0 = none

[debug]
max_iterations = 50
min_iterations = 20
errors_factor = 0      # budget = clamp(errors_factor * initial errors); 0 = fixed
policy = "ERRORS_DIFFERENT_FROM_BEFORE"
timeout_minutes = 0    # 0 = no deadline
dry_run = false        # report initial errors and exit without changes

[llm]
model = "gpt-4o-mini"
base_url = ""          # override for OpenAI-compatible endpoints (empty = default)
api_key_env = "OPENAI_API_KEY"
max_tokens = 0         # 0 = provider default
temperature = 0.0
max_feedback_rounds = 8  # rejected-fix conversation turns before restarting fresh

[retry]
max_attempts = 3
wait = "exponential"   # "fixed" or "exponential"
seconds = 1.0
min_seconds = 1.0
max_seconds = 60.0

[tui]
accent_color = "#7D56F4"  # hex color for header/accent elements
log_retention = 20        # number of trajectories to keep; 0 = unlimited

[notifications]
url = ""            # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_accept = false   # notify on each accepted fix
on_error = true     # notify on run failure
on_complete = true  # notify when the run finishes
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}

// Package metrics summarizes a recorded trajectory into run statistics for
// reporting.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/amazon-science/SDFeedback/internal/trajectory"
)

// Summary is the aggregate view of one run's trajectory.
type Summary struct {
	RunID         string `json:"run_id"`
	Project       string `json:"project,omitempty"`
	RootDir       string `json:"root_dir"`
	MaxIterations int    `json:"max_iterations"`
	Iterations    int    `json:"iterations"`

	InitialErrors int   `json:"initial_errors"`
	FinalErrors   int   `json:"final_errors"`
	ErrorCurve    []int `json:"error_curve"` // errors per build, in order

	Builds      int `json:"builds"`
	LlmCalls    int `json:"llm_calls"`
	LlmFailures int `json:"llm_failures"`
	Patches     int `json:"patches"`
	Accepts     int `json:"accepts"`
	Rejects     int `json:"rejects"`

	TouchedFiles []string `json:"touched_files,omitempty"` // files in accepted commits
}

// Fixed reports whether the run ended with a clean build.
func (s Summary) Fixed() bool {
	return s.Builds > 0 && s.FinalErrors == 0
}

// Summarize folds a trajectory into a Summary.
func Summarize(t trajectory.Trajectory) Summary {
	s := Summary{
		RunID:         t.RunID,
		Project:       t.Project,
		RootDir:       t.RootDir,
		MaxIterations: t.MaxIterations,
	}

	touched := map[string]bool{}
	for _, step := range t.Steps {
		if step.Iteration+1 > s.Iterations {
			s.Iterations = step.Iteration + 1
		}
		switch a := step.Action; a.Kind {
		case trajectory.ActionBuild:
			s.Builds++
			s.ErrorCurve = append(s.ErrorCurve, a.Build.NumErrors)
			if s.Builds == 1 {
				s.InitialErrors = a.Build.NumErrors
			}
			s.FinalErrors = a.Build.NumErrors
		case trajectory.ActionLlm:
			s.LlmCalls++
			if a.Llm.LlmError != nil {
				s.LlmFailures++
			}
		case trajectory.ActionRule:
			s.Patches++
		case trajectory.ActionGit:
			switch a.Git.GitOption {
			case trajectory.GitCommit, trajectory.GitCommitAll:
				s.Accepts++
				for _, f := range a.Git.Filenames {
					touched[f] = true
				}
			case trajectory.GitRevert:
				s.Rejects++
			}
		}
	}

	for f := range touched {
		s.TouchedFiles = append(s.TouchedFiles, f)
	}
	sort.Strings(s.TouchedFiles)
	return s
}

// Render formats the summary as a human-readable report.
func (s Summary) Render() string {
	var b strings.Builder

	name := s.Project
	if name == "" {
		name = s.RootDir
	}
	status := "NOT FIXED"
	if s.Fixed() {
		status = "FIXED"
	}
	fmt.Fprintf(&b, "Run %s  %s  [%s]\n", s.RunID, name, status)
	fmt.Fprintf(&b, "  iterations:  %d / %d\n", s.Iterations, s.MaxIterations)
	fmt.Fprintf(&b, "  errors:      %d -> %d\n", s.InitialErrors, s.FinalErrors)
	fmt.Fprintf(&b, "  builds:      %d\n", s.Builds)
	fmt.Fprintf(&b, "  model calls: %d (%d failed)\n", s.LlmCalls, s.LlmFailures)
	fmt.Fprintf(&b, "  decisions:   %d accepted, %d rejected\n", s.Accepts, s.Rejects)
	if len(s.ErrorCurve) > 0 {
		fmt.Fprintf(&b, "  error curve: %s\n", curve(s.ErrorCurve))
	}
	if len(s.TouchedFiles) > 0 {
		fmt.Fprintf(&b, "  files changed:\n")
		for _, f := range s.TouchedFiles {
			fmt.Fprintf(&b, "    %s\n", f)
		}
	}
	return b.String()
}

func curve(points []int) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, " > ")
}

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/amazon-science/SDFeedback/internal/loop"
	"github.com/amazon-science/SDFeedback/internal/runstate"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := rootCmd()

	want := map[string]bool{"run": false, "status": false, "report": false, "init": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRunCmdFlags(t *testing.T) {
	cmd := runCmd()
	for _, flag := range []string{"max", "policy", "dry-run", "no-tui", "config"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("run command missing --%s flag", flag)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2026, 8, 30, 14, 30, 5, 0, time.UTC)

	tests := []struct {
		name     string
		entry    loop.LogEntry
		contains []string
	}{
		{
			name:     "iteration start",
			entry:    loop.LogEntry{Kind: loop.LogIterStart, Timestamp: ts, Iteration: 3},
			contains: []string{"[14:30:05]", "-- iteration 3 --"},
		},
		{
			name:     "accepted",
			entry:    loop.LogEntry{Kind: loop.LogAccepted, Timestamp: ts, Message: "build errors 2 <== 3"},
			contains: []string{"ACCEPT", "build errors 2 <== 3"},
		},
		{
			name:     "rejected",
			entry:    loop.LogEntry{Kind: loop.LogRejected, Timestamp: ts, Message: "no progress"},
			contains: []string{"REJECT", "no progress"},
		},
		{
			name:     "error",
			entry:    loop.LogEntry{Kind: loop.LogError, Timestamp: ts, Message: "model call failed"},
			contains: []string{"ERROR", "model call failed"},
		},
		{
			name:     "plain info",
			entry:    loop.LogEntry{Kind: loop.LogInfo, Timestamp: ts, Message: "starting"},
			contains: []string{"[14:30:05]", "starting"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLogLine(tt.entry)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("line %q should contain %q", got, want)
				}
			}
		})
	}
}

func TestStateTracker(t *testing.T) {
	dir := t.TempDir()
	st := newStateTracker(dir, "billing", "run-1", 30)
	st.save()

	st.trackEntry(loop.LogEntry{Kind: loop.LogBuild, Iteration: 2, MaxIter: 12, NumErrors: 5, Branch: "main"})
	st.trackEntry(loop.LogEntry{Kind: loop.LogAccepted, Iteration: 2, NumErrors: 4, Commit: "abc1234"})

	loaded, err := runstate.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", loaded.RunID)
	}
	if loaded.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2", loaded.Iteration)
	}
	if loaded.MaxIterations != 12 {
		t.Errorf("MaxIterations = %d, want 12 (derived budget)", loaded.MaxIterations)
	}
	if loaded.NumErrors != 4 {
		t.Errorf("NumErrors = %d, want 4", loaded.NumErrors)
	}
	if loaded.LastCommit != "abc1234" {
		t.Errorf("LastCommit = %q, want abc1234", loaded.LastCommit)
	}
	if !loaded.Running() {
		t.Error("expected running before finish")
	}

	st.finish(loop.OutcomeSuccess)
	loaded, err = runstate.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Running() {
		t.Error("expected not running after finish")
	}
	if loaded.Outcome != string(loop.OutcomeSuccess) {
		t.Errorf("Outcome = %q, want %q", loaded.Outcome, loop.OutcomeSuccess)
	}
}

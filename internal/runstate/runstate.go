// Package runstate persists the live status of a fix run to
// .sdfix/run-state.json so `sdfix status` can report on a run from another
// terminal.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State tracks one run's operational state.
type State struct {
	PID           int       `json:"pid"`
	RunID         string    `json:"run_id"`
	Project       string    `json:"project,omitempty"`
	Branch        string    `json:"branch"`
	Iteration     int       `json:"iteration"`
	MaxIterations int       `json:"max_iterations"`
	NumErrors     int       `json:"num_errors"`
	LastCommit    string    `json:"last_commit"`
	StartedAt     time.Time `json:"started_at"`
	LastOutputAt  time.Time `json:"last_output_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Outcome       string    `json:"outcome,omitempty"`
}

// Running reports whether the run has started but not finished.
func (s State) Running() bool {
	return !s.StartedAt.IsZero() && s.FinishedAt.IsZero()
}

const stateFileName = "run-state.json"

const stateDirName = ".sdfix"

// Load reads the run state from .sdfix/run-state.json in dir.
// Returns a zero State (not an error) if the file does not exist.
func Load(dir string) (State, error) {
	path := filepath.Join(dir, stateDirName, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("runstate: read state: %w", err)
	}

	var s State
	if jsonErr := json.Unmarshal(data, &s); jsonErr != nil {
		return State{}, fmt.Errorf("runstate: parse state: %w", jsonErr)
	}
	return s, nil
}

// Save writes the run state to .sdfix/run-state.json in dir.
// Creates the .sdfix directory if it does not exist.
// Uses a write-then-rename pattern so concurrent readers never observe a
// partially-written file.
func Save(dir string, s State) error {
	stateDir := filepath.Join(dir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("runstate: create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("runstate: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(stateDir, ".run-state-*.tmp")
	if err != nil {
		return fmt.Errorf("runstate: create temp state: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("runstate: write state: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("runstate: close state: %w", closeErr)
	}
	path := filepath.Join(stateDir, stateFileName)
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("runstate: finalize state: %w", renameErr)
	}
	return nil
}

// Package state defines the immutable repository snapshot descriptor.
// A State is produced at loop start and replaced (never mutated) on every
// accepted transition, so trajectory steps can share it without aliasing
// hazards.
package state

import "fmt"

// State describes a repository at a point in time: where it lives, which
// branch is checked out, and which commit the working tree matches.
type State struct {
	RootDir  string `json:"root_dir"`
	Branch   string `json:"branch"`
	CommitID string `json:"commit_id"`
}

// New creates a State for the given repository location and version.
func New(rootDir, branch, commitID string) State {
	return State{RootDir: rootDir, Branch: branch, CommitID: commitID}
}

// Equal reports whether two States describe the same snapshot. All three
// fields must match.
func (s State) Equal(other State) bool {
	return s == other
}

// WithCommit returns a copy of s pointing at a different commit. The
// receiver is unchanged.
func (s State) WithCommit(commitID string) State {
	s.CommitID = commitID
	return s
}

// IsZero reports whether s is the zero State (no repository attached).
func (s State) IsZero() bool {
	return s == State{}
}

func (s State) String() string {
	return fmt.Sprintf("%s@%s(%s)", s.RootDir, s.Branch, short(s.CommitID))
}

// short truncates a commit ID for display.
func short(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

package git

import (
	"fmt"

	"github.com/amazon-science/SDFeedback/internal/state"
	"github.com/amazon-science/SDFeedback/internal/trajectory"
)

// Checkpointer applies the commit-on-accept / revert-on-reject discipline.
// Its operations either leave the working tree exactly at the returned state
// or fail with an error the loop must treat as fatal, because a failed
// checkpoint means the tree can no longer be trusted to match any recorded
// state.
type Checkpointer struct {
	runner *Runner
}

// NewCheckpointer creates a Checkpointer over the repository at dir.
func NewCheckpointer(dir string) *Checkpointer {
	return &Checkpointer{runner: NewRunner(dir)}
}

// CaptureState reads the repository's current branch and HEAD into a State.
func (c *Checkpointer) CaptureState() (state.State, error) {
	branch, err := c.runner.CurrentBranch()
	if err != nil {
		return state.State{}, err
	}
	head, err := c.runner.Head()
	if err != nil {
		return state.State{}, err
	}
	return state.New(c.runner.Dir, branch, head), nil
}

// Commit checkpoints the working tree: stages the given files (or all when
// none are given), commits with message, and returns the advanced state.
func (c *Checkpointer) Commit(st state.State, files []string, message string) (state.State, error) {
	if err := c.runner.CommitAll(message, files...); err != nil {
		return st, err
	}
	head, err := c.runner.Head()
	if err != nil {
		return st, err
	}
	return st.WithCommit(head), nil
}

// Revert discards every uncommitted change so the tree matches st again,
// leaving the tool's own artifacts (protectedPaths) in place. It is
// idempotent: calling it on a clean tree, or after a partially applied
// patch, is safe. If HEAD no longer matches st it is moved back with a hard
// reset before cleaning.
func (c *Checkpointer) Revert(st state.State, _ []string, _ string) (state.State, error) {
	head, err := c.runner.Head()
	if err != nil {
		return st, err
	}
	if st.CommitID != "" && head != st.CommitID {
		if err := c.runner.ResetHard(st.CommitID); err != nil {
			return st, err
		}
	}
	if err := c.runner.Restore(); err != nil {
		return st, err
	}

	dirty, err := c.runner.HasUncommittedChanges(protectedPaths...)
	if err != nil {
		return st, err
	}
	if dirty {
		return st, fmt.Errorf("git: tree still dirty after revert at %s", st)
	}
	return st, nil
}

// Apply dispatches a recorded git option onto the underlying operations,
// satisfying the external git collaborator contract.
func (c *Checkpointer) Apply(opt trajectory.GitOption, st state.State, files []string, message string) (state.State, error) {
	switch opt {
	case trajectory.GitAddAll:
		return st, c.runner.AddAll(files...)
	case trajectory.GitCommit:
		if err := c.runner.Commit(message); err != nil {
			return st, err
		}
		head, err := c.runner.Head()
		if err != nil {
			return st, err
		}
		return st.WithCommit(head), nil
	case trajectory.GitCommitAll:
		return c.Commit(st, files, message)
	case trajectory.GitRevert:
		return c.Revert(st, files, message)
	}
	return st, fmt.Errorf("git: unknown option %q", opt)
}

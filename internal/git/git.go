// Package git provides the checkpoint manager: commit-on-accept,
// revert-on-reject, with the guarantee that after either operation the
// working tree exactly matches the returned state.
package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// protectedPaths are files the tool itself writes into the repository it is
// fixing. They are never tracked-state, so a revert must not remove them:
// cleaning them away would delete the run's own config and open trajectory.
var protectedPaths = []string{".sdfix", "sdfix.toml", ".gitignore"}

// Runner executes git commands in a working directory.
type Runner struct {
	Dir string // working directory for git commands
}

// NewRunner creates a Runner for the given directory.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir}
}

// CurrentBranch returns the name of the current git branch.
func (r *Runner) CurrentBranch() (string, error) {
	out, err := r.run("branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("git current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Head returns the full SHA of HEAD.
func (r *Runner) Head() (string, error) {
	out, err := r.run("rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git head: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// HasUncommittedChanges returns true if the working tree or index has
// changes. Paths listed in ignore (and anything under them) do not count.
func (r *Runner) HasUncommittedChanges(ignore ...string) (bool, error) {
	out, err := r.run("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if len(line) > 3 && !ignored(strings.Trim(line[3:], `"`), ignore) {
			return true, nil
		}
	}
	return false, nil
}

func ignored(path string, ignore []string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range ignore {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// AddAll stages the given files, or everything when no files are given.
func (r *Runner) AddAll(files ...string) error {
	args := append([]string{"add"}, files...)
	args = append(args, "--all")
	if _, err := r.run(args...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// Commit commits staged changes with the given message.
func (r *Runner) Commit(message string) error {
	if _, err := r.run("commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// CommitAll stages everything and commits. A tree with nothing to commit is
// not an error; the caller observes an unchanged HEAD instead.
func (r *Runner) CommitAll(message string, files ...string) error {
	if err := r.AddAll(files...); err != nil {
		return err
	}
	dirty, err := r.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return r.Commit(message)
}

// Restore discards staged and unstaged modifications to tracked files and
// removes untracked files and directories, except the tool's own artifacts
// in protectedPaths. Safe to call on an already-clean tree, and safe after a
// partially applied patch.
func (r *Runner) Restore() error {
	if _, err := r.run("restore", "--staged", "."); err != nil {
		return fmt.Errorf("git restore --staged: %w", err)
	}
	if _, err := r.run("restore", "."); err != nil {
		return fmt.Errorf("git restore: %w", err)
	}
	args := []string{"clean", "-fd"}
	for _, p := range protectedPaths {
		args = append(args, "-e", p)
	}
	if _, err := r.run(args...); err != nil {
		return fmt.Errorf("git clean: %w", err)
	}
	return nil
}

// ResetHard moves HEAD and the working tree to the given commit.
func (r *Runner) ResetHard(commit string) error {
	if _, err := r.run("reset", "--hard", commit); err != nil {
		return fmt.Errorf("git reset --hard %s: %w", commit, err)
	}
	return nil
}

// run executes a git command and returns its combined output.
func (r *Runner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%s: %w", errMsg, err)
	}
	return stdout.String(), nil
}

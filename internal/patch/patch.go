// Package patch turns a model response into concrete file edits and applies
// them to the working tree. Two response formats are understood: fenced
// whole-file blocks headed by `File: <path>` and unified diffs. Application
// never commits; the git checkpoint manager decides whether edits survive.
package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileEdit is a whole-file replacement parsed from a response.
type FileEdit struct {
	Path    string
	Content string
}

// ErrNoEdits is returned when a response contains nothing applicable. The
// loop records it as parser feedback for the next prompt rather than failing
// the run.
var ErrNoEdits = errors.New("patch: unable to parse the response and patch relevant files")

// fileBlockRe matches `File: path` (optionally backquoted or bold) followed
// by a fenced code block. The fence language tag is ignored.
var fileBlockRe = regexp.MustCompile("(?ms)^\\**`?File:?\\s*`?\\s*`?([^`\\n*]+?)`?\\**\\s*\\n+```[a-zA-Z0-9+._-]*\\n(.*?)\\n?```")

// Parse extracts file edits from a response. Unified diffs take precedence;
// otherwise fenced file blocks are collected. Returns ErrNoEdits when
// neither format yields an edit.
func Parse(response string) ([]FileEdit, error) {
	if looksLikeDiff(response) {
		edits, err := parseDiff(response)
		if err == nil && len(edits) > 0 {
			return edits, nil
		}
		// Fall through to file blocks; some models mix prose and diffs.
	}

	matches := fileBlockRe.FindAllStringSubmatch(response, -1)
	var edits []FileEdit
	for _, m := range matches {
		path := strings.TrimSpace(m[1])
		if path == "" {
			continue
		}
		edits = append(edits, FileEdit{Path: path, Content: m[2]})
	}
	if len(edits) == 0 {
		return nil, ErrNoEdits
	}
	return edits, nil
}

// Apply writes the edits under rootDir and returns the relative paths that
// changed. Paths escaping the root are rejected; partially applied edit sets
// are the checkpoint manager's problem (revert restores the tree).
func Apply(rootDir string, edits []FileEdit) ([]string, error) {
	var changed []string
	for _, e := range edits {
		if IsDiffEdit(e) {
			touched, err := ApplyDiff(rootDir, e)
			if err != nil {
				return changed, err
			}
			changed = append(changed, touched...)
			continue
		}
		rel, err := safeRel(rootDir, e.Path)
		if err != nil {
			return changed, err
		}
		full := filepath.Join(rootDir, rel)
		if mkErr := os.MkdirAll(filepath.Dir(full), 0755); mkErr != nil {
			return changed, fmt.Errorf("patch: mkdir for %s: %w", rel, mkErr)
		}
		if writeErr := os.WriteFile(full, []byte(e.Content), 0644); writeErr != nil {
			return changed, fmt.Errorf("patch: write %s: %w", rel, writeErr)
		}
		changed = append(changed, rel)
	}
	return changed, nil
}

// safeRel normalizes an edit path to be relative to rootDir and rejects
// escapes ("../..", absolute paths outside the root).
func safeRel(rootDir, path string) (string, error) {
	p := path
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return "", fmt.Errorf("patch: path %s outside repository: %w", path, err)
		}
		p = rel
	}
	p = filepath.Clean(p)
	if p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("patch: path %s escapes repository root", path)
	}
	return p, nil
}

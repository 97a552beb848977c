package patch

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// looksLikeDiff reports whether the response contains unified diff headers.
func looksLikeDiff(response string) bool {
	return strings.Contains(response, "\n--- ") && strings.Contains(response, "\n+++ ") ||
		strings.HasPrefix(response, "--- ")
}

// parseDiff extracts whole-file edits from a unified diff by locating each
// file's current content implied by the hunks. The diff must apply against
// a caller-supplied tree, so hunks are resolved lazily in ApplyDiff; here we
// only validate structure and extract targets.
func parseDiff(response string) ([]FileEdit, error) {
	section := extractDiffSection(response)
	fds, err := diff.ParseMultiFileDiff([]byte(section))
	if err != nil {
		return nil, fmt.Errorf("patch: parse diff: %w", err)
	}
	if len(fds) == 0 {
		return nil, ErrNoEdits
	}

	var edits []FileEdit
	for _, fd := range fds {
		name := cleanDiffPath(fd.NewName)
		if name == "" {
			name = cleanDiffPath(fd.OrigName)
		}
		if name == "" {
			continue
		}
		edits = append(edits, FileEdit{Path: name, Content: diffMarker + section})
	}
	if len(edits) == 0 {
		return nil, ErrNoEdits
	}
	// All edits share the diff text; ApplyDiff handles actual application.
	return edits[:1], nil
}

// extractDiffSection trims prose and code fences surrounding the diff,
// keeping everything from the first diff header onward.
func extractDiffSection(response string) string {
	lines := strings.Split(response, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "diff --git ") {
			start = i
			break
		}
	}
	if start < 0 {
		return response
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "```") {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n") + "\n"
}

// diffMarker tags a FileEdit whose Content is a unified diff rather than
// whole-file content.
const diffMarker = "\x00diff\x00"

// IsDiffEdit reports whether e carries a unified diff payload.
func IsDiffEdit(e FileEdit) bool {
	return strings.HasPrefix(e.Content, diffMarker)
}

// ApplyDiff applies a unified-diff FileEdit against the tree at rootDir,
// returning every file it touched.
func ApplyDiff(rootDir string, e FileEdit) ([]string, error) {
	text := strings.TrimPrefix(e.Content, diffMarker)
	fds, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("patch: parse diff: %w", err)
	}

	var changed []string
	for _, fd := range fds {
		name := cleanDiffPath(fd.NewName)
		if name == "" {
			name = cleanDiffPath(fd.OrigName)
		}
		rel, relErr := safeRel(rootDir, name)
		if relErr != nil {
			return changed, relErr
		}

		if err := applyFileDiff(rootDir, rel, fd); err != nil {
			return changed, err
		}
		changed = append(changed, rel)
	}
	return changed, nil
}

// applyFileDiff applies all hunks of fd to the file at rel under rootDir.
func applyFileDiff(rootDir, rel string, fd *diff.FileDiff) error {
	full := joinRoot(rootDir, rel)
	original, err := readLines(full)
	if err != nil {
		return fmt.Errorf("patch: read %s: %w", rel, err)
	}

	out := make([]string, 0, len(original))
	cursor := 0 // index into original, 0-based

	for _, h := range fd.Hunks {
		start := int(h.OrigStartLine) - 1
		if start < 0 {
			start = 0
		}
		if start < cursor || start > len(original) {
			return fmt.Errorf("patch: hunk at line %d does not fit %s", h.OrigStartLine, rel)
		}
		out = append(out, original[cursor:start]...)
		cursor = start

		for _, line := range splitHunkBody(h.Body) {
			if line == "" {
				continue
			}
			op, rest := line[0], line[1:]
			switch op {
			case ' ':
				if cursor >= len(original) || original[cursor] != rest {
					return fmt.Errorf("patch: context mismatch in %s at line %d", rel, cursor+1)
				}
				out = append(out, rest)
				cursor++
			case '-':
				if cursor >= len(original) || original[cursor] != rest {
					return fmt.Errorf("patch: removal mismatch in %s at line %d", rel, cursor+1)
				}
				cursor++
			case '+':
				out = append(out, rest)
			case '\\':
				// "\ No newline at end of file"
			default:
				return fmt.Errorf("patch: unexpected hunk line %q in %s", line, rel)
			}
		}
	}
	out = append(out, original[cursor:]...)

	return writeLines(full, out)
}

func splitHunkBody(body []byte) []string {
	return strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
}

// cleanDiffPath strips the conventional a/ and b/ prefixes.
func cleanDiffPath(name string) string {
	name = strings.TrimSpace(name)
	if name == "/dev/null" || name == "" {
		return ""
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}

package patch

import (
	"os"
	"path/filepath"
	"strings"
)

func joinRoot(rootDir, rel string) string {
	return filepath.Join(rootDir, rel)
}

// readLines returns the file's lines without trailing newlines. A missing
// file reads as empty, which lets diffs create new files.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// writeLines writes lines joined by newlines with a trailing newline.
func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0644)
}

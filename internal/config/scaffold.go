package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScaffoldProject creates the sdfix working structure in the given
// directory: sdfix.toml with a detected build command, and a .gitignore
// entry for the artifact directory. Files that already exist are left
// untouched. Returns the list of created paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, "sdfix.toml")
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		if cmd := DetectBuildCommand(dir); cmd != "" {
			if fillErr := fillBuildCommand(tomlPath, cmd); fillErr != nil {
				return created, fillErr
			}
		}
		created = append(created, tomlPath)
	}

	// .gitignore - keep run artifacts out of the repository being fixed,
	// since the loop commits the whole tree on every accepted fix.
	const gitignoreEntry = ".sdfix/"
	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(gitignorePath, []byte(gitignoreEntry+"\n"), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	} else if err != nil {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	} else if !strings.Contains(string(existing), gitignoreEntry) {
		content := string(existing)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += gitignoreEntry + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}

// fillBuildCommand rewrites the empty build.command line of a freshly
// written template with the detected command.
func fillBuildCommand(path, cmd string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scaffold: read %s: %w", path, err)
	}
	old := `command = ""           # build command, run through the shell in the repo root`
	replacement := fmt.Sprintf("command = %q", cmd)
	content := strings.Replace(string(data), old, replacement, 1)
	if writeErr := os.WriteFile(path, []byte(content), 0644); writeErr != nil {
		return fmt.Errorf("scaffold: write %s: %w", path, writeErr)
	}
	return nil
}

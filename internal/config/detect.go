package config

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DetectProjectName tries to infer the project name from common project
// manifest files in dir. It checks pom.xml, go.mod, package.json, and
// Cargo.toml in that order, returning the first non-empty name found.
// Falls back to the directory base name if no manifest provides a name.
// Errors from manifest files are silently ignored.
func DetectProjectName(dir string) string {
	if name := detectFromPom(dir); name != "" {
		return name
	}
	if name := detectFromGoMod(dir); name != "" {
		return name
	}
	if name := detectFromPackageJSON(dir); name != "" {
		return name
	}
	if name := detectFromCargo(dir); name != "" {
		return name
	}
	return filepath.Base(dir)
}

// DetectBuildCommand suggests a build command for the repository at dir
// based on which manifests are present. Returns "" when nothing is
// recognized.
func DetectBuildCommand(dir string) string {
	switch {
	case exists(dir, "pom.xml"):
		return "mvn -B clean compile"
	case anyGlob(dir, "*.sln"), anyGlob(dir, "*.csproj"):
		return "dotnet build"
	case exists(dir, "go.mod"):
		return "go build ./..."
	case exists(dir, "Cargo.toml"):
		return "cargo build"
	case exists(dir, "package.json"):
		return "npm run build"
	}
	return ""
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func anyGlob(dir, pattern string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	return err == nil && len(matches) > 0
}

type pomXML struct {
	ArtifactID string `xml:"artifactId"`
	Name       string `xml:"name"`
}

func detectFromPom(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "pom.xml"))
	if err != nil {
		return ""
	}
	var p pomXML
	if err := xml.Unmarshal(data, &p); err != nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ArtifactID
}

func detectFromGoMod(dir string) string {
	f, err := os.Open(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if module, ok := strings.CutPrefix(line, "module "); ok {
			return filepath.Base(strings.TrimSpace(module))
		}
	}
	return ""
}

type packageJSON struct {
	Name string `json:"name"`
}

func detectFromPackageJSON(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var p packageJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return p.Name
}

type cargoTOML struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

func detectFromCargo(dir string) string {
	var c cargoTOML
	if _, err := toml.DecodeFile(filepath.Join(dir, "Cargo.toml"), &c); err != nil {
		return ""
	}
	return c.Package.Name
}

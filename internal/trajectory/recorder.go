package trajectory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// artifactDir is the directory under the repository root that holds run
// artifacts.
const artifactDir = ".sdfix"

// Recorder is the append-only trajectory log. Every appended step is written
// as a JSON line and synced immediately, so a crashed run's partial
// trajectory is still a valid artifact. Prior steps are never mutated.
type Recorder struct {
	mu   sync.Mutex
	meta Trajectory
	file *os.File
	path string
	last int // iteration of the most recent step; -1 before any append
}

// header is the first line of a trajectory file: run metadata without steps.
type header struct {
	RunID         string `json:"run_id"`
	RootDir       string `json:"root_dir"`
	Project       string `json:"project,omitempty"`
	MaxIterations int    `json:"max_iterations"`
}

// NewRecorder creates the trajectory file for a run under
// <rootDir>/.sdfix/trajectory-<run-id>.jsonl and writes the metadata header.
func NewRecorder(rootDir, project string, maxIterations int) (*Recorder, error) {
	dir := filepath.Join(rootDir, artifactDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("trajectory: mkdir %q: %w", dir, err)
	}

	runID := uuid.NewString()
	path := filepath.Join(dir, "trajectory-"+runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("trajectory: open %q: %w", path, err)
	}

	r := &Recorder{
		meta: Trajectory{
			RunID:         runID,
			RootDir:       rootDir,
			Project:       project,
			MaxIterations: maxIterations,
		},
		file: f,
		path: path,
		last: -1,
	}
	if err := r.writeLine(header{runID, rootDir, project, maxIterations}); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// RunID returns the run identifier naming this trajectory.
func (r *Recorder) RunID() string { return r.meta.RunID }

// Path returns the trajectory file location.
func (r *Recorder) Path() string { return r.path }

// SetMaxIterations records the effective iteration budget once it is known
// (it can shrink after the initial build when an error-count factor is
// configured). Only the metadata is updated; past steps are untouched.
func (r *Recorder) SetMaxIterations(n int) {
	r.mu.Lock()
	r.meta.MaxIterations = n
	r.mu.Unlock()
}

// Append validates the step and writes it. Steps must arrive in
// non-decreasing iteration order; a step for an earlier iteration is a
// programming error and is rejected.
func (r *Recorder) Append(step Step) error {
	if err := step.Action.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if step.Iteration < r.last {
		return fmt.Errorf("trajectory: step iteration %d precedes last appended %d", step.Iteration, r.last)
	}
	if err := r.writeLine(step); err != nil {
		return err
	}
	r.last = step.Iteration
	r.meta.Steps = append(r.meta.Steps, step)
	return nil
}

// Snapshot returns a copy of the trajectory recorded so far.
func (r *Recorder) Snapshot() Trajectory {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.meta
	t.Steps = append([]Step(nil), r.meta.Steps...)
	return t
}

// Persist flushes and closes the trajectory file. The file is already synced
// per append, so Persist succeeding after a partial run is the normal case,
// not a special one.
func (r *Recorder) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	if err != nil {
		return fmt.Errorf("trajectory: close %q: %w", r.path, err)
	}
	return nil
}

func (r *Recorder) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("trajectory: marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.file.Write(data); err != nil {
		return fmt.Errorf("trajectory: write: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("trajectory: sync: %w", err)
	}
	return nil
}

// Load reads a trajectory file written by a Recorder. Malformed trailing
// lines (a crash mid-write) are skipped rather than failing the load.
func Load(path string) (Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trajectory{}, fmt.Errorf("trajectory: open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var t Trajectory
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			var h header
			if err := json.Unmarshal(line, &h); err != nil {
				return Trajectory{}, fmt.Errorf("trajectory: parse header: %w", err)
			}
			t = Trajectory{RunID: h.RunID, RootDir: h.RootDir, Project: h.Project, MaxIterations: h.MaxIterations}
			first = false
			continue
		}
		var s Step
		if err := json.Unmarshal(line, &s); err != nil {
			continue
		}
		t.Steps = append(t.Steps, s)
	}
	if err := scanner.Err(); err != nil {
		return Trajectory{}, fmt.Errorf("trajectory: read %q: %w", path, err)
	}
	if first {
		return Trajectory{}, fmt.Errorf("trajectory: %q has no header", path)
	}
	return t, nil
}

// LatestPath returns the most recently modified trajectory file under
// rootDir, or an empty string when none exists.
func LatestPath(rootDir string) (string, error) {
	dir := filepath.Join(rootDir, artifactDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("trajectory: read dir %q: %w", dir, err)
	}

	var best string
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best = filepath.Join(dir, e.Name())
			bestMod = mod
		}
	}
	return best, nil
}

// Prune deletes the oldest trajectory files under rootDir so that at most
// keep remain. keep <= 0 means unlimited and is a no-op, as is a missing
// artifact directory.
func Prune(rootDir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	dir := filepath.Join(rootDir, artifactDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("trajectory: read dir %q: %w", dir, err)
	}

	type logFile struct {
		name string
		mod  int64
	}
	var files []logFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "trajectory-") || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		files = append(files, logFile{e.Name(), info.ModTime().UnixNano()})
	}
	if len(files) <= keep {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mod > files[j].mod })
	for _, f := range files[keep:] {
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			return fmt.Errorf("trajectory: prune %q: %w", f.name, err)
		}
	}
	return nil
}

// Package build defines the structured build-error model and the Builder
// collaborator that produces it by invoking an external build tool.
package build

import (
	"fmt"

	"github.com/amazon-science/SDFeedback/internal/state"
)

// Error is one structured diagnostic extracted from build tool output.
// ErrorMessage and ColumnNumber are descriptive only; identity for set
// comparisons is (Filename, ErrorCode, LineNumber), which tolerates
// whitespace and formatting noise in messages between runs.
type Error struct {
	Filename     string `json:"filename"`
	Project      string `json:"project,omitempty"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	LineNumber   int    `json:"line_number"`
	ColumnNumber int    `json:"column_number,omitempty"`
}

// Key is the identity of an Error for set operations.
type Key struct {
	Filename   string
	ErrorCode  string
	LineNumber int
}

// Identity returns the comparison key for e.
func (e Error) Identity() Key {
	return Key{Filename: e.Filename, ErrorCode: e.ErrorCode, LineNumber: e.LineNumber}
}

func (e Error) String() string {
	return fmt.Sprintf("%s@(%d, %d): [%s] %s", e.Filename, e.LineNumber, e.ColumnNumber, e.ErrorCode, e.ErrorMessage)
}

// Action records one build invocation: where it ran, what it ran, and the
// structured errors it produced. FirstError is the first error in build-tool
// emission order and is the targeted error for the iteration; it is excluded
// from Errors to avoid double counting.
type Action struct {
	State      state.State `json:"state"`
	Cwd        string      `json:"cwd"`
	Cmd        string      `json:"cmd"`
	NumErrors  int         `json:"num_errors"`
	FirstError *Error      `json:"first_error,omitempty"`
	Errors     []Error     `json:"errors,omitempty"`
}

// NewAction assembles an Action from errors in emission order, splitting off
// the first as the targeted error.
func NewAction(st state.State, cwd, cmd string, errors []Error) Action {
	a := Action{State: st, Cwd: cwd, Cmd: cmd, NumErrors: len(errors)}
	if len(errors) > 0 {
		first := errors[0]
		a.FirstError = &first
		a.Errors = append([]Error(nil), errors[1:]...)
	}
	return a
}

// Validate checks the num_errors invariant:
// NumErrors == (FirstError != nil ? 1 : 0) + len(Errors), and that a failed
// build always names a targeted error.
func (a Action) Validate() error {
	want := len(a.Errors)
	if a.FirstError != nil {
		want++
	}
	if a.NumErrors != want {
		return fmt.Errorf("build: num_errors = %d, want %d (first_error set: %t, rest: %d)",
			a.NumErrors, want, a.FirstError != nil, len(a.Errors))
	}
	if a.NumErrors > 0 && a.FirstError == nil {
		return fmt.Errorf("build: %d errors but no targeted first error", a.NumErrors)
	}
	return nil
}

// Clean reports whether the build produced no errors.
func (a Action) Clean() bool {
	return a.NumErrors == 0
}

// AllErrors returns the full error list in emission order, targeted error
// first. The returned slice is a copy.
func (a Action) AllErrors() []Error {
	if a.FirstError == nil {
		return append([]Error(nil), a.Errors...)
	}
	out := make([]Error, 0, 1+len(a.Errors))
	out = append(out, *a.FirstError)
	return append(out, a.Errors...)
}

// Failure is returned when the build tool itself cannot run or produce
// parseable diagnostics. It is fatal for the loop, unlike a non-empty error
// set, which is the loop's normal input.
type Failure struct {
	Cmd    string
	Err    error
	Output string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("build: %s failed without parseable diagnostics: %v", f.Cmd, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

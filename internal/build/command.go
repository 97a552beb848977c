package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/amazon-science/SDFeedback/internal/state"
)

// Builder is the collaborator that builds a repository at a given State and
// returns the structured result. The loop never interprets raw tool output
// itself.
type Builder interface {
	Build(ctx context.Context, st state.State) (Action, error)
}

// CommandBuilder runs a shell build command in the repository root and feeds
// its output to a parser command that emits structured errors as a JSON
// array. The parser is language-specific and external to this module; it
// only needs to read raw diagnostics on stdin and write JSON on stdout.
type CommandBuilder struct {
	BuildCmd string // e.g. "mvn -B clean compile"
	ParseCmd string // reads build output on stdin, writes []Error JSON on stdout
}

// NewCommandBuilder creates a CommandBuilder for the given build and parser
// commands.
func NewCommandBuilder(buildCmd, parseCmd string) *CommandBuilder {
	return &CommandBuilder{BuildCmd: buildCmd, ParseCmd: parseCmd}
}

// Build runs the build command at st.RootDir. A zero exit code yields a clean
// Action without invoking the parser. A non-zero exit pipes the combined
// output through the parser command; if the parser cannot run, emits invalid
// JSON, or reports zero errors for a failed build, Build returns *Failure.
func (b *CommandBuilder) Build(ctx context.Context, st state.State) (Action, error) {
	output, exitErr, err := runShell(ctx, st.RootDir, b.BuildCmd)
	if err != nil {
		return Action{}, &Failure{Cmd: b.BuildCmd, Err: err, Output: output}
	}
	if exitErr == nil {
		return NewAction(st, st.RootDir, b.BuildCmd, nil), nil
	}

	errs, parseErr := b.parse(ctx, st.RootDir, output)
	if parseErr != nil {
		return Action{}, &Failure{Cmd: b.BuildCmd, Err: parseErr, Output: output}
	}
	if len(errs) == 0 {
		// Non-zero tool exit with no diagnostics is a tool failure, not a
		// clean build.
		return Action{}, &Failure{
			Cmd:    b.BuildCmd,
			Err:    fmt.Errorf("exit status non-zero but parser found no errors: %w", exitErr),
			Output: output,
		}
	}
	return NewAction(st, st.RootDir, b.BuildCmd, errs), nil
}

// parse feeds raw build output to the parser command and decodes its JSON.
func (b *CommandBuilder) parse(ctx context.Context, dir, buildOutput string) ([]Error, error) {
	cmd := shellCommand(ctx, dir, b.ParseCmd)
	cmd.Stdin = strings.NewReader(buildOutput)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("parser %q: %s: %w", b.ParseCmd, msg, err)
		}
		return nil, fmt.Errorf("parser %q: %w", b.ParseCmd, err)
	}

	var errs []Error
	if err := json.Unmarshal(stdout.Bytes(), &errs); err != nil {
		return nil, fmt.Errorf("parser %q: decode output: %w", b.ParseCmd, err)
	}
	return errs, nil
}

// runShell runs command in dir and returns its combined output. A non-zero
// exit is returned as exitErr; any other failure (shell missing, context
// cancelled) is returned as err.
func runShell(ctx context.Context, dir, command string) (output string, exitErr, err error) {
	cmd := shellCommand(ctx, dir, command)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()
	output = combined.String()

	if runErr == nil {
		return output, nil, nil
	}
	var ee *exec.ExitError
	if errors.As(runErr, &ee) && ctx.Err() == nil {
		return output, runErr, nil
	}
	if ctx.Err() != nil {
		return output, nil, ctx.Err()
	}
	return output, nil, runErr
}

// shellCommand builds the platform shell invocation for a command line.
func shellCommand(ctx context.Context, dir, command string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	return cmd
}

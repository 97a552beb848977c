package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amazon-science/SDFeedback/internal/config"
	"github.com/amazon-science/SDFeedback/internal/loop"
	"github.com/amazon-science/SDFeedback/internal/notify"
	"github.com/amazon-science/SDFeedback/internal/runstate"
	"github.com/amazon-science/SDFeedback/internal/trajectory"
	"github.com/amazon-science/SDFeedback/internal/tui"
)

// runWithStateTracking runs the loop in no-TUI mode, draining events to
// stdout and persisting state to .sdfix/run-state.json so `sdfix status`
// works from another terminal.
func runWithStateTracking(ctx context.Context, lp *loop.Loop, dir string, cfg *config.Config, recorder *trajectory.Recorder, notifier *notify.Notifier) (loop.Result, error) {
	events := make(chan loop.LogEntry, 128)
	lp.Events = events

	st := newStateTracker(dir, cfg.Project.Name, recorder.RunID(), cfg.Debug.MaxIterations)
	st.save()

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for entry := range events {
			fmt.Fprintln(os.Stdout, formatLogLine(entry))
			st.trackEntry(entry)
			notifier.Hook(entry)
		}
	}()

	result, runErr := lp.Run(ctx)
	close(events)
	<-drainDone

	st.finish(result.Outcome)
	return result, runErr
}

// runWithTUI runs the loop with the TUI, forwarding events through the
// state tracker so `sdfix status` works during the run.
func runWithTUI(ctx context.Context, lp *loop.Loop, dir string, cfg *config.Config, recorder *trajectory.Recorder, notifier *notify.Notifier) (loop.Result, error) {
	loopEvents := make(chan loop.LogEntry, 128)
	tuiEvents := make(chan loop.LogEntry, 128)

	// Graceful stop: TUI 's' key closes stopCh; the loop checks it before
	// each build.
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	requestStop := func() { stopOnce.Do(func() { close(stopCh) }) }
	lp.StopAfter = stopCh

	lp.Events = loopEvents

	st := newStateTracker(dir, cfg.Project.Name, recorder.RunID(), cfg.Debug.MaxIterations)
	st.save()

	model := tui.New(tuiEvents, tui.Options{
		Project:     cfg.Project.Name,
		AccentColor: cfg.TUI.AccentColor,
		RequestStop: requestStop,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Forward loop events through state tracking and notifications to the TUI.
	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for entry := range loopEvents {
			st.trackEntry(entry)
			notifier.Hook(entry)
			select {
			case tuiEvents <- entry:
			default:
			}
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	type runOutcome struct {
		result loop.Result
		err    error
	}
	outCh := make(chan runOutcome, 1)
	go func() {
		defer close(tuiEvents)
		result, runErr := lp.Run(runCtx)
		close(loopEvents)
		<-forwardDone
		outCh <- runOutcome{result, runErr}
	}()

	if _, tuiErr := program.Run(); tuiErr != nil {
		return loop.Result{}, fmt.Errorf("tui: %w", tuiErr)
	}

	// Quitting the TUI before the run finishes cancels the loop; it stops
	// at the last committed state.
	cancelRun()
	out := <-outCh
	st.finish(out.result.Outcome)
	if out.err != nil && errors.Is(out.err, context.Canceled) {
		return out.result, nil
	}
	return out.result, out.err
}

// formatLogLine renders one event for plain stdout output.
func formatLogLine(entry loop.LogEntry) string {
	ts := entry.Timestamp.Format("15:04:05")
	switch entry.Kind {
	case loop.LogIterStart:
		return fmt.Sprintf("[%s]  -- iteration %d --", ts, entry.Iteration)
	case loop.LogAccepted:
		return fmt.Sprintf("[%s]  ACCEPT  %s", ts, entry.Message)
	case loop.LogRejected:
		return fmt.Sprintf("[%s]  REJECT  %s", ts, entry.Message)
	case loop.LogError, loop.LogFailed:
		return fmt.Sprintf("[%s]  ERROR   %s", ts, entry.Message)
	default:
		return fmt.Sprintf("[%s]  %s", ts, entry.Message)
	}
}

// stateTracker persists loop progress to .sdfix/run-state.json.
type stateTracker struct {
	state runstate.State
	dir   string
}

func newStateTracker(dir, project, runID string, maxIterations int) *stateTracker {
	now := time.Now()
	return &stateTracker{
		dir: dir,
		state: runstate.State{
			PID:           os.Getpid(),
			RunID:         runID,
			Project:       project,
			MaxIterations: maxIterations,
			NumErrors:     -1,
			StartedAt:     now,
			LastOutputAt:  now,
		},
	}
}

func (s *stateTracker) trackEntry(entry loop.LogEntry) {
	changed := false
	if entry.Iteration > 0 {
		s.state.Iteration = entry.Iteration
		changed = true
	}
	if entry.MaxIter > 0 && entry.MaxIter != s.state.MaxIterations {
		s.state.MaxIterations = entry.MaxIter
		changed = true
	}
	if entry.Commit != "" {
		s.state.LastCommit = entry.Commit
		changed = true
	}
	if entry.Branch != "" {
		s.state.Branch = entry.Branch
		changed = true
	}
	switch entry.Kind {
	case loop.LogBuild, loop.LogAccepted, loop.LogRejected:
		s.state.NumErrors = entry.NumErrors
		changed = true
	}
	s.state.LastOutputAt = time.Now()
	if changed {
		s.save()
	}
}

func (s *stateTracker) save() {
	_ = runstate.Save(s.dir, s.state)
}

func (s *stateTracker) finish(outcome loop.Outcome) {
	s.state.FinishedAt = time.Now()
	s.state.Outcome = string(outcome)
	s.save()
}

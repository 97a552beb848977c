// Package loop implements the self-debugging cycle: build -> prompt ->
// model -> patch -> verify -> commit or revert, one targeted error per
// iteration, every step appended to the trajectory.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/amazon-science/SDFeedback/internal/build"
	"github.com/amazon-science/SDFeedback/internal/llm"
	"github.com/amazon-science/SDFeedback/internal/patch"
	"github.com/amazon-science/SDFeedback/internal/progress"
	"github.com/amazon-science/SDFeedback/internal/retry"
	"github.com/amazon-science/SDFeedback/internal/state"
	"github.com/amazon-science/SDFeedback/internal/trajectory"
)

// Phase names the orchestrator's position in its state machine. Phases are
// reported in events; transitions are fixed by Run.
type Phase string

const (
	PhaseInit        Phase = "INIT"
	PhaseBuilding    Phase = "BUILDING"
	PhaseAwaitingLlm Phase = "AWAITING_LLM"
	PhaseApplyingFix Phase = "APPLYING_FIX"
	PhaseVerifying   Phase = "VERIFYING"
	PhaseAccepted    Phase = "ACCEPTED"
	PhaseRejected    Phase = "REJECTED"
)

// Outcome is a terminal result of a run.
type Outcome string

const (
	OutcomeSuccess       Outcome = "SUCCESS"
	OutcomeFailedMaxIter Outcome = "FAILED_MAX_ITER"
	OutcomeFailed        Outcome = "FAILED"
	OutcomeStopped       Outcome = "STOPPED"
	OutcomeDryRun        Outcome = "DRY_RUN"
)

// Checkpoint is the git collaborator the loop needs. *git.Checkpointer
// satisfies this interface.
type Checkpoint interface {
	CaptureState() (state.State, error)
	Commit(st state.State, files []string, message string) (state.State, error)
	Revert(st state.State, files []string, message string) (state.State, error)
}

// Recorder is the trajectory sink. *trajectory.Recorder satisfies this
// interface.
type Recorder interface {
	Append(step trajectory.Step) error
	SetMaxIterations(n int)
	Persist() error
}

// Options carries the per-run configuration, passed explicitly so multiple
// repository loops can run concurrently with different policies.
type Options struct {
	MaxIterations  int
	MinIterations  int     // floor for the derived budget; ignored when ErrorsFactor is 0
	ErrorsFactor   float64 // budget = min(MaxIterations, max(MinIterations, factor*#errors)); 0 disables
	Policy         progress.Policy
	DryRun         bool
	FeedbackRounds int // rejected-fix conversation length before restarting fresh; 0 = default
}

// Result summarizes a finished run.
type Result struct {
	Outcome       Outcome
	Iterations    int
	InitialErrors int
	FinalErrors   int
	FinalState    state.State
	Err           error
}

// Loop orchestrates one repository's debugging run. All collaborators are
// required except Events/Log/StopAfter.
type Loop struct {
	Builder    build.Builder
	Client     llm.Client
	Retry      *retry.Executor
	Checkpoint Checkpoint
	Prompts    *llm.PromptBuilder
	Recorder   Recorder
	Opts       Options

	Events    chan<- LogEntry // optional structured event sink
	Log       io.Writer       // fallback log destination; defaults to os.Stdout
	StopAfter <-chan struct{} // optional graceful stop, checked with cancellation

	// Failure feedback carried between iterations of the same error.
	feedback     []string
	lastPrompt   llm.Prompt
	lastResponse string

	// Error counts of the first and most recent build, for the Result.
	initialErrors int
	lastErrors    int
}

// Run executes the loop until a clean build, budget exhaustion, cancellation,
// or an unrecoverable collaborator failure. The trajectory is persisted on
// every exit path.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	defer func() {
		if err := l.Recorder.Persist(); err != nil {
			l.emit(LogEntry{Kind: LogError, Message: fmt.Sprintf("persist trajectory: %v", err)})
		}
	}()

	st, err := l.Checkpoint.CaptureState()
	if err != nil {
		return l.fail(st, 0, fmt.Errorf("loop: capture initial state: %w", err))
	}
	l.emit(LogEntry{Kind: LogInfo, Branch: st.Branch, Commit: st.CommitID,
		Message: fmt.Sprintf("Starting at %s (policy: %s)", st, l.Opts.Policy)})

	maxIter := l.Opts.MaxIterations
	for i := 0; ; i++ {
		if stopped, res := l.checkCancelled(ctx, st, i); stopped {
			return res, res.Err
		}
		if i >= maxIter {
			l.emit(LogEntry{Kind: LogFailed, Iteration: i, MaxIter: maxIter,
				Message: fmt.Sprintf("Out of budget after %d iterations", i)})
			return Result{Outcome: OutcomeFailedMaxIter, Iterations: i,
				InitialErrors: l.initialErrors, FinalErrors: l.lastErrors, FinalState: st}, nil
		}

		// BUILDING
		b, buildErr := l.buildAndRecord(ctx, st, i, PhaseBuilding)
		if buildErr != nil {
			return l.fail(st, i, buildErr)
		}
		if i == 0 {
			l.initialErrors = b.NumErrors
			maxIter = l.effectiveBudget(b.NumErrors)
			l.Recorder.SetMaxIterations(maxIter)
		}
		if b.Clean() {
			l.emit(LogEntry{Kind: LogDone, Iteration: i, MaxIter: maxIter,
				Message: "Build is clean"})
			return Result{Outcome: OutcomeSuccess, Iterations: i,
				InitialErrors: l.initialErrors, FinalState: st}, nil
		}
		if i == 0 {
			l.emit(LogEntry{Kind: LogInfo, NumErrors: b.NumErrors, MaxIter: maxIter,
				Message: fmt.Sprintf("Initial build: %d errors, budget %d iterations", b.NumErrors, maxIter)})
		}
		if l.Opts.DryRun {
			for _, e := range b.AllErrors() {
				l.emit(LogEntry{Kind: LogInfo, Message: e.String()})
			}
			return Result{
				Outcome: OutcomeDryRun, Iterations: i,
				InitialErrors: b.NumErrors, FinalErrors: b.NumErrors, FinalState: st,
			}, nil
		}

		next, res, done := l.runIteration(ctx, st, i, maxIter, b)
		if done {
			res.InitialErrors = l.initialErrors
			return res, res.Err
		}
		st = next
	}
}

// runIteration performs the LLM/patch/verify/decide portion of one cycle.
// It returns the (possibly advanced) state, and when done is true, the
// terminal result.
func (l *Loop) runIteration(ctx context.Context, st state.State, i, maxIter int, b build.Action) (state.State, Result, bool) {
	l.emit(LogEntry{Kind: LogIterStart, Iteration: i, MaxIter: maxIter, NumErrors: b.NumErrors,
		Message: fmt.Sprintf("Iteration %d: targeting %s", i, b.FirstError)})

	// AWAITING_LLM
	response, ok := l.invokeAndRecord(ctx, st, i, b)
	if !ok {
		return st, Result{}, false // failed attempt, no state change
	}

	// APPLYING_FIX
	edits, parseErr := patch.Parse(response)
	if parseErr != nil {
		l.noteFeedback("Unable to parse the response and patch relevant files.")
		l.emit(LogEntry{Kind: LogError, Iteration: i, Message: "Response contained no applicable edits"})
		return st, Result{}, false
	}
	changed, applyErr := patch.Apply(st.RootDir, edits)
	if applyErr != nil {
		// A partial application is rolled back so the tree matches st again.
		if _, revErr := l.Checkpoint.Revert(st, nil, "revert partial patch"); revErr != nil {
			return st, l.failResult(st, i, fmt.Errorf("loop: revert after failed patch: %w", revErr)), true
		}
		l.noteFeedback(fmt.Sprintf("The suggested changes could not be applied: %v.", applyErr))
		l.emit(LogEntry{Kind: LogError, Iteration: i, Message: fmt.Sprintf("Patch failed: %v", applyErr)})
		return st, Result{}, false
	}
	if appendErr := l.Recorder.Append(trajectory.Step{Iteration: i, Action: trajectory.RuleStepAction(
		trajectory.RuleAction{State: st, NewState: st},
	)}); appendErr != nil {
		return st, l.failResult(st, i, appendErr), true
	}
	l.emit(LogEntry{Kind: LogPatch, Iteration: i, Message: fmt.Sprintf("Applied edits to %d file(s)", len(changed))})

	// VERIFYING
	verify, buildErr := l.buildAndRecord(ctx, st, i, PhaseVerifying)
	if buildErr != nil {
		return st, l.failResult(st, i, buildErr), true
	}

	// Decide.
	decision := progress.Evaluate(b.AllErrors(), verify.AllErrors(), *b.FirstError, l.Opts.Policy)
	if decision == progress.Accept {
		msg := fmt.Sprintf("Iteration %d: build errors %d <== %d", i, verify.NumErrors, b.NumErrors)
		committed, commitErr := l.Checkpoint.Commit(st, changed, msg)
		if commitErr != nil {
			return st, l.failResult(st, i, fmt.Errorf("loop: commit: %w", commitErr)), true
		}
		if appendErr := l.Recorder.Append(trajectory.Step{Iteration: i, Action: trajectory.GitStepAction(
			trajectory.GitAction{State: st, NewState: &committed, Filenames: changed,
				GitOption: trajectory.GitCommitAll, CommitMessage: msg},
		)}); appendErr != nil {
			return committed, l.failResult(committed, i, appendErr), true
		}
		l.resetFeedback()
		l.emit(LogEntry{Kind: LogAccepted, Iteration: i, NumErrors: verify.NumErrors,
			Decision: decision.String(), Commit: committed.CommitID, Message: msg})

		if verify.Clean() {
			// The verifying build already showed zero errors; no rebuild.
			l.emit(LogEntry{Kind: LogDone, Iteration: i, Message: "Build is clean"})
			return committed, Result{Outcome: OutcomeSuccess, Iterations: i + 1,
				FinalErrors: verify.NumErrors, FinalState: committed}, true
		}
		return committed, Result{}, false
	}

	// REJECTED
	reason := progress.Explain(decision, l.Opts.Policy)
	reverted, revertErr := l.Checkpoint.Revert(st, changed, reason)
	if revertErr != nil {
		return st, l.failResult(st, i, fmt.Errorf("loop: revert: %w", revertErr)), true
	}
	if appendErr := l.Recorder.Append(trajectory.Step{Iteration: i, Action: trajectory.GitStepAction(
		trajectory.GitAction{State: st, NewState: &reverted, Filenames: changed,
			GitOption: trajectory.GitRevert, RevertMessage: reason},
	)}); appendErr != nil {
		return reverted, l.failResult(reverted, i, appendErr), true
	}
	l.noteFeedback(reason)
	l.emit(LogEntry{Kind: LogRejected, Iteration: i, NumErrors: verify.NumErrors,
		Decision: decision.String(), Message: reason})
	return reverted, Result{}, false
}

// buildAndRecord invokes the builder and appends the build step. A builder
// error is a build failure, fatal for the run.
func (l *Loop) buildAndRecord(ctx context.Context, st state.State, i int, phase Phase) (build.Action, error) {
	b, err := l.Builder.Build(ctx, st)
	if err != nil {
		var bf *build.Failure
		if errors.As(err, &bf) {
			return build.Action{}, fmt.Errorf("loop: %s: %w", phase, bf)
		}
		return build.Action{}, fmt.Errorf("loop: %s: %w", phase, err)
	}
	if err := b.Validate(); err != nil {
		return build.Action{}, fmt.Errorf("loop: %s: %w", phase, err)
	}
	l.lastErrors = b.NumErrors
	if err := l.Recorder.Append(trajectory.Step{Iteration: i, Action: trajectory.BuildAction(b)}); err != nil {
		return build.Action{}, err
	}
	l.emit(LogEntry{Kind: LogBuild, Iteration: i, NumErrors: b.NumErrors,
		Message: fmt.Sprintf("%s: %d errors", phase, b.NumErrors)})
	return b, nil
}

// invokeAndRecord calls the model through the retry policy and appends the
// LLM step. ok is false when the call exhausted its retries; the iteration
// then counts as a failed attempt without a state change.
func (l *Loop) invokeAndRecord(ctx context.Context, st state.State, i int, b build.Action) (string, bool) {
	rounds := l.Opts.FeedbackRounds
	if rounds <= 0 {
		rounds = defaultFeedbackRounds
	}
	fresh := l.Prompts.Build(*b.FirstError, b.Errors)
	prompt := l.Prompts.WithFeedback(fresh, l.lastPrompt, l.lastResponse, l.feedback, rounds)

	var response string
	err := l.Retry.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		response, callErr = l.Client.Invoke(ctx, prompt)
		return callErr
	})

	action := trajectory.LlmAction{Prompt: prompt}
	if err != nil {
		action.LlmError = asLlmError(err)
	} else {
		action.Response = response
	}
	if appendErr := l.Recorder.Append(trajectory.Step{Iteration: i, Action: trajectory.LlmStepAction(st, action)}); appendErr != nil {
		l.emit(LogEntry{Kind: LogError, Iteration: i, Message: appendErr.Error()})
		return "", false
	}

	if err != nil {
		l.emit(LogEntry{Kind: LogError, Iteration: i,
			Message: fmt.Sprintf("Model call failed: %v", err)})
		return "", false
	}

	l.lastPrompt = prompt
	l.lastResponse = response
	l.emit(LogEntry{Kind: LogLlm, Iteration: i, Message: fmt.Sprintf("Model responded (%d bytes)", len(response))})
	return response, true
}

// defaultFeedbackRounds bounds the rejected-fix conversation before it
// restarts from a fresh prompt when no limit is configured.
const defaultFeedbackRounds = 8

// effectiveBudget derives the iteration budget from the initial error count
// when an errors factor is configured.
func (l *Loop) effectiveBudget(numErrors int) int {
	maxIter := l.Opts.MaxIterations
	if l.Opts.ErrorsFactor <= 0 {
		return maxIter
	}
	derived := int(math.Round(l.Opts.ErrorsFactor * float64(numErrors)))
	if derived < l.Opts.MinIterations {
		derived = l.Opts.MinIterations
	}
	if derived < maxIter {
		return derived
	}
	return maxIter
}

// checkCancelled implements the cancellation contract: checked at the top of
// every BUILDING transition, stopping cleanly at the last committed state.
func (l *Loop) checkCancelled(ctx context.Context, st state.State, i int) (bool, Result) {
	select {
	case <-ctx.Done():
		l.emit(LogEntry{Kind: LogStopped, Iteration: i, Message: "Stopped: " + ctx.Err().Error()})
		return true, Result{Outcome: OutcomeStopped, Iterations: i,
			InitialErrors: l.initialErrors, FinalErrors: l.lastErrors, FinalState: st, Err: ctx.Err()}
	default:
	}
	if l.StopAfter != nil {
		select {
		case <-l.StopAfter:
			l.emit(LogEntry{Kind: LogStopped, Iteration: i, Message: "Stop requested, halting before next build"})
			return true, Result{Outcome: OutcomeStopped, Iterations: i,
				InitialErrors: l.initialErrors, FinalErrors: l.lastErrors, FinalState: st}
		default:
		}
	}
	return false, Result{}
}

func (l *Loop) fail(st state.State, i int, err error) (Result, error) {
	res := l.failResult(st, i, err)
	return res, res.Err
}

func (l *Loop) failResult(st state.State, i int, err error) Result {
	l.emit(LogEntry{Kind: LogFailed, Iteration: i, Message: err.Error()})
	return Result{Outcome: OutcomeFailed, Iterations: i,
		InitialErrors: l.initialErrors, FinalErrors: l.lastErrors, FinalState: st, Err: err}
}

func (l *Loop) noteFeedback(msg string) {
	l.feedback = append(l.feedback, msg)
}

func (l *Loop) resetFeedback() {
	l.feedback = nil
	l.lastPrompt = llm.Prompt{}
	l.lastResponse = ""
}

// asLlmError normalizes any failure from the retry/client stack into the
// typed record stored in the trajectory.
func asLlmError(err error) *llm.Error {
	var typed *llm.Error
	if errors.As(err, &typed) {
		if retry.Exhausted(err) {
			return &llm.Error{Type: typed.Type, Err: err.Error()}
		}
		return typed
	}
	return &llm.Error{Type: llm.ErrorUnknown, Err: err.Error()}
}

// emit sends the entry to the Events channel when set, otherwise formats it
// to the Log writer.
func (l *Loop) emit(entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if l.Events != nil {
		select {
		case l.Events <- entry:
		default:
		}
		return
	}
	w := l.Log
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "[%s]  %s\n", entry.Timestamp.Format("15:04:05"), entry.Message)
}

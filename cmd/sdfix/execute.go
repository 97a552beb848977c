package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amazon-science/SDFeedback/internal/build"
	"github.com/amazon-science/SDFeedback/internal/config"
	"github.com/amazon-science/SDFeedback/internal/git"
	"github.com/amazon-science/SDFeedback/internal/llm"
	"github.com/amazon-science/SDFeedback/internal/loop"
	"github.com/amazon-science/SDFeedback/internal/metrics"
	"github.com/amazon-science/SDFeedback/internal/notify"
	"github.com/amazon-science/SDFeedback/internal/progress"
	"github.com/amazon-science/SDFeedback/internal/retry"
	"github.com/amazon-science/SDFeedback/internal/runstate"
	"github.com/amazon-science/SDFeedback/internal/trajectory"
)

type runOptions struct {
	maxOverride    int
	policyOverride string
	dryRun         bool
	noTUI          bool
	configPath     string
}

// executeRun loads config, wires the collaborators, and runs the fix loop.
func executeRun(opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.maxOverride > 0 {
		cfg.Debug.MaxIterations = opts.maxOverride
	}
	if opts.policyOverride != "" {
		cfg.Debug.Policy = opts.policyOverride
	}
	if opts.dryRun {
		cfg.Debug.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	if cfg.Debug.TimeoutMinutes > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, time.Duration(cfg.Debug.TimeoutMinutes)*time.Minute)
		defer timeoutCancel()
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIOptions{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: float32(cfg.LLM.Temperature),
	})
	if err != nil {
		return err
	}

	recorder, err := trajectory.NewRecorder(dir, cfg.Project.Name, cfg.Debug.MaxIterations)
	if err != nil {
		return err
	}
	if err := trajectory.Prune(dir, cfg.TUI.LogRetention); err != nil {
		fmt.Fprintf(os.Stderr, "warning: prune old trajectories: %v\n", err)
	}

	lp := &loop.Loop{
		Builder:    build.NewCommandBuilder(cfg.Build.Command, cfg.Build.Parser),
		Client:     client,
		Retry:      retry.NewExecutor(cfg.RetryPolicy()),
		Checkpoint: git.NewCheckpointer(dir),
		Prompts:    llm.NewPromptBuilder(dir, cfg.Build.MaxContextFiles),
		Recorder:   recorder,
		Opts: loop.Options{
			MaxIterations:  cfg.Debug.MaxIterations,
			MinIterations:  cfg.Debug.MinIterations,
			ErrorsFactor:   cfg.Debug.ErrorsFactor,
			Policy:         progress.Policy(cfg.Debug.Policy),
			DryRun:         cfg.Debug.DryRun,
			FeedbackRounds: cfg.LLM.MaxFeedbackRounds,
		},
	}

	notifier := notify.New(cfg.Notifications.URL, cfg.Project.Name,
		cfg.Notifications.OnAccept, cfg.Notifications.OnError, cfg.Notifications.OnComplete)

	var result loop.Result
	var runErr error
	if opts.noTUI || cfg.Debug.DryRun {
		result, runErr = runWithStateTracking(ctx, lp, dir, cfg, recorder, notifier)
	} else {
		result, runErr = runWithTUI(ctx, lp, dir, cfg, recorder, notifier)
	}

	fmt.Printf("\n%s after %d iteration(s). Trajectory: %s\n", result.Outcome, result.Iterations, recorder.Path())
	return runErr
}

// showStatus reads .sdfix/run-state.json and prints a formatted summary.
func showStatus() error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	st, err := runstate.Load(dir)
	if err != nil {
		return err
	}

	if st.PID == 0 && st.RunID == "" {
		fmt.Println("No run state found. Run 'sdfix run' first.")
		return nil
	}

	fmt.Println("sdfix status")
	fmt.Println("------------")

	if st.Project != "" {
		fmt.Printf("  %-20s %s\n", "Project:", st.Project)
	}
	if st.RunID != "" {
		fmt.Printf("  %-20s %s\n", "Run:", st.RunID)
	}
	if st.Branch != "" {
		fmt.Printf("  %-20s %s\n", "Branch:", st.Branch)
	}
	if st.LastCommit != "" {
		fmt.Printf("  %-20s %s\n", "Last commit:", st.LastCommit)
	}
	fmt.Printf("  %-20s %d/%d\n", "Iteration:", st.Iteration, st.MaxIterations)
	fmt.Printf("  %-20s %d\n", "Build errors:", st.NumErrors)

	if st.Running() {
		elapsed := time.Since(st.StartedAt).Round(time.Second)
		fmt.Printf("  %-20s %s (running)\n", "Duration:", elapsed)
		if !st.LastOutputAt.IsZero() {
			ago := time.Since(st.LastOutputAt).Round(time.Second)
			fmt.Printf("  %-20s %s ago\n", "Last output:", ago)
		}
		fmt.Printf("  %-20s running\n", "Result:")
	} else if !st.StartedAt.IsZero() {
		dur := st.FinishedAt.Sub(st.StartedAt).Round(time.Second)
		fmt.Printf("  %-20s %s\n", "Duration:", dur)
		fmt.Printf("  %-20s %s\n", "Result:", st.Outcome)
	}

	return nil
}

// showReport summarizes a trajectory file; with no path it picks the most
// recent one under .sdfix/.
func showReport(path string) error {
	if path == "" {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		path, err = trajectory.LatestPath(dir)
		if err != nil {
			return err
		}
	}

	traj, err := trajectory.Load(path)
	if err != nil {
		return err
	}

	fmt.Print(metrics.Summarize(traj).Render())
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return ctx, cancel
}

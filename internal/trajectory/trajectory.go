// Package trajectory records every step of a debugging run as an ordered,
// append-only log. The trajectory is the durable artifact of a run: enough
// to reconstruct what was tried, accepted, and reverted.
package trajectory

import (
	"fmt"

	"github.com/amazon-science/SDFeedback/internal/build"
	"github.com/amazon-science/SDFeedback/internal/llm"
	"github.com/amazon-science/SDFeedback/internal/state"
)

// ActionKind tags the populated variant of an Action.
type ActionKind string

const (
	ActionNone  ActionKind = "NONE"
	ActionBuild ActionKind = "BUILD"
	ActionRule  ActionKind = "RULE"
	ActionLlm   ActionKind = "LLM"
	ActionGit   ActionKind = "GIT"
)

// GitOption identifies a git operation performed by the checkpoint manager.
type GitOption string

const (
	GitAddAll    GitOption = "ADD_ALL"
	GitCommit    GitOption = "COMMIT"
	GitCommitAll GitOption = "COMMIT_ALL"
	GitRevert    GitOption = "REVERT"
)

// RuleAction is a deterministic repository edit (patch application); it is
// always a state transition.
type RuleAction struct {
	State    state.State `json:"state"`
	NewState state.State `json:"new_state"`
}

// LlmAction records one model call: the prompt and exactly one of a response
// or a typed error.
type LlmAction struct {
	Prompt   llm.Prompt `json:"prompt"`
	Response string     `json:"response,omitempty"`
	LlmError *llm.Error `json:"llm_error,omitempty"`
}

// GitAction records one checkpoint operation.
type GitAction struct {
	State         state.State  `json:"state"`
	NewState      *state.State `json:"new_state,omitempty"`
	Filenames     []string     `json:"filenames,omitempty"`
	GitOption     GitOption    `json:"git_option"`
	CommitMessage string       `json:"commit_message,omitempty"`
	RevertMessage string       `json:"revert_message,omitempty"`
}

// Action is the tagged union over one step's record. Exactly one variant
// matching Kind is populated; Validate enforces what the type system cannot.
// Only RULE and GIT actions carry a NewState; BUILD and LLM observe or
// propose but never advance state.
type Action struct {
	Kind     ActionKind   `json:"kind"`
	State    state.State  `json:"state"`
	NewState *state.State `json:"new_state,omitempty"`

	Build *build.Action `json:"build_action,omitempty"`
	Rule  *RuleAction   `json:"rule_action,omitempty"`
	Llm   *LlmAction    `json:"llm_action,omitempty"`
	Git   *GitAction    `json:"git_action,omitempty"`
}

// BuildAction wraps a build result as a trajectory action.
func BuildAction(a build.Action) Action {
	return Action{Kind: ActionBuild, State: a.State, Build: &a}
}

// LlmStepAction wraps a model call as a trajectory action.
func LlmStepAction(st state.State, a LlmAction) Action {
	return Action{Kind: ActionLlm, State: st, Llm: &a}
}

// RuleStepAction wraps a patch application as a trajectory action.
func RuleStepAction(a RuleAction) Action {
	ns := a.NewState
	return Action{Kind: ActionRule, State: a.State, NewState: &ns, Rule: &a}
}

// GitStepAction wraps a checkpoint operation as a trajectory action.
func GitStepAction(a GitAction) Action {
	return Action{Kind: ActionGit, State: a.State, NewState: a.NewState, Git: &a}
}

// Validate checks the exactly-one-variant invariant and the rule that only
// RULE and GIT actions may carry a new state.
func (a Action) Validate() error {
	var populated int
	if a.Build != nil {
		populated++
	}
	if a.Rule != nil {
		populated++
	}
	if a.Llm != nil {
		populated++
	}
	if a.Git != nil {
		populated++
	}

	switch a.Kind {
	case ActionNone:
		if populated != 0 {
			return fmt.Errorf("trajectory: NONE action carries a variant")
		}
		return nil
	case ActionBuild, ActionRule, ActionLlm, ActionGit:
		if populated != 1 {
			return fmt.Errorf("trajectory: %s action has %d variants populated, want 1", a.Kind, populated)
		}
	default:
		return fmt.Errorf("trajectory: unknown action kind %q", a.Kind)
	}

	var match bool
	switch a.Kind {
	case ActionBuild:
		match = a.Build != nil
	case ActionRule:
		match = a.Rule != nil
	case ActionLlm:
		match = a.Llm != nil
	case ActionGit:
		match = a.Git != nil
	}
	if !match {
		return fmt.Errorf("trajectory: %s action populates a different variant", a.Kind)
	}

	if a.NewState != nil && a.Kind != ActionRule && a.Kind != ActionGit {
		return fmt.Errorf("trajectory: %s action must not carry a new state", a.Kind)
	}
	if a.Llm != nil && (a.Llm.Response != "") == (a.Llm.LlmError != nil) {
		return fmt.Errorf("trajectory: llm action needs exactly one of response or error")
	}
	return nil
}

// Step is one recorded action tagged with its orchestrator cycle. A cycle
// may emit several steps sharing the iteration index.
type Step struct {
	Iteration int    `json:"iteration"`
	Action    Action `json:"action"`
}

// Trajectory is the full record of one repository's run.
type Trajectory struct {
	RunID         string `json:"run_id"`
	RootDir       string `json:"root_dir"`
	Project       string `json:"project,omitempty"`
	MaxIterations int    `json:"max_iterations"`
	Steps         []Step `json:"steps"`
}

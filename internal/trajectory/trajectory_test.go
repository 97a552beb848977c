package trajectory

import (
	"testing"

	"github.com/amazon-science/SDFeedback/internal/build"
	"github.com/amazon-science/SDFeedback/internal/llm"
	"github.com/amazon-science/SDFeedback/internal/state"
)

func testStates() (state.State, state.State) {
	st := state.New("/repo", "main", "aaaa1111")
	return st, st.WithCommit("bbbb2222")
}

func TestActionValidate(t *testing.T) {
	st, next := testStates()

	buildAct := build.Action{State: st, Cwd: "/repo", Cmd: "mvn compile"}
	ruleAct := RuleAction{State: st, NewState: st}
	llmOK := LlmAction{Prompt: llm.Prompt{Prompt: "fix it"}, Response: "done"}
	llmErr := LlmAction{Prompt: llm.Prompt{Prompt: "fix it"}, LlmError: &llm.Error{Type: llm.ErrorThrottled, Err: "429"}}
	gitAct := GitAction{State: st, NewState: &next, GitOption: GitCommitAll, CommitMessage: "checkpoint"}

	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"none empty", Action{Kind: ActionNone, State: st}, false},
		{"none with variant", Action{Kind: ActionNone, State: st, Build: &buildAct}, true},
		{"build", BuildAction(buildAct), false},
		{"rule", RuleStepAction(ruleAct), false},
		{"llm response", LlmStepAction(st, llmOK), false},
		{"llm error", LlmStepAction(st, llmErr), false},
		{"git", GitStepAction(gitAct), false},
		{"unknown kind", Action{Kind: "PATCH", State: st, Rule: &ruleAct}, true},
		{"build missing variant", Action{Kind: ActionBuild, State: st}, true},
		{"two variants", Action{Kind: ActionBuild, State: st, Build: &buildAct, Rule: &ruleAct}, true},
		{"kind mismatch", Action{Kind: ActionLlm, State: st, Build: &buildAct}, true},
		{"build with new state", Action{Kind: ActionBuild, State: st, NewState: &next, Build: &buildAct}, true},
		{"llm with new state", Action{Kind: ActionLlm, State: st, NewState: &next, Llm: &llmOK}, true},
		{"llm both response and error", Action{Kind: ActionLlm, State: st, Llm: &LlmAction{Response: "x", LlmError: &llm.Error{Type: llm.ErrorUnknown, Err: "y"}}}, true},
		{"llm neither response nor error", Action{Kind: ActionLlm, State: st, Llm: &LlmAction{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	st, next := testStates()

	b := BuildAction(build.Action{State: st, Cmd: "go build ./..."})
	if b.Kind != ActionBuild || b.Build == nil || b.NewState != nil {
		t.Errorf("BuildAction = %+v", b)
	}
	if !b.State.Equal(st) {
		t.Errorf("BuildAction.State = %v", b.State)
	}

	r := RuleStepAction(RuleAction{State: st, NewState: st})
	if r.Kind != ActionRule || r.NewState == nil || !r.NewState.Equal(st) {
		t.Errorf("RuleStepAction = %+v", r)
	}

	g := GitStepAction(GitAction{State: st, NewState: &next, GitOption: GitRevert})
	if g.Kind != ActionGit || g.NewState == nil || !g.NewState.Equal(next) {
		t.Errorf("GitStepAction = %+v", g)
	}

	l := LlmStepAction(st, LlmAction{Response: "patch"})
	if l.Kind != ActionLlm || l.Llm == nil || l.NewState != nil {
		t.Errorf("LlmStepAction = %+v", l)
	}
}

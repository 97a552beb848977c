package progress

import (
	"strings"
	"testing"

	"github.com/amazon-science/SDFeedback/internal/build"
)

func e(file, code string, line int) build.Error {
	return build.Error{Filename: file, ErrorCode: code, LineNumber: line, ErrorMessage: "msg"}
}

func TestEvaluate(t *testing.T) {
	e1 := e("A.java", "X", 10)
	e2 := e("B.java", "Y", 5)
	e3 := e("A.java", "Z", 10) // same file and line as e1, new code
	e4 := e("C.java", "W", 1)

	tests := []struct {
		name     string
		previous []build.Error
		current  []build.Error
		targeted build.Error
		policy   Policy
		want     Decision
	}{
		// ERRORS_DIFFERENT_FROM_BEFORE
		{"different: identical sets reject", []build.Error{e1, e2}, []build.Error{e2, e1}, e1, ErrorsDifferentFromBefore, Reject},
		{"different: any change accepts", []build.Error{e1, e2}, []build.Error{e2}, e1, ErrorsDifferentFromBefore, Accept},
		{"different: swap accepts", []build.Error{e1, e2}, []build.Error{e3, e2}, e1, ErrorsDifferentFromBefore, Accept},
		{"different: growth accepts", []build.Error{e1}, []build.Error{e1, e2, e4}, e1, ErrorsDifferentFromBefore, Accept},
		{"different: message change alone rejects", []build.Error{e1},
			[]build.Error{{Filename: "A.java", ErrorCode: "X", LineNumber: 10, ErrorMessage: "  reformatted  "}},
			e1, ErrorsDifferentFromBefore, Reject},

		// ERRORS_NOT_A_SWAP
		{"not-a-swap: pure trade rejects", []build.Error{e1, e2}, []build.Error{e3, e2}, e1, ErrorsNotASwap, Reject},
		{"not-a-swap: plain fix accepts", []build.Error{e1, e2}, []build.Error{e2}, e1, ErrorsNotASwap, Accept},
		{"not-a-swap: identical sets reject", []build.Error{e1, e2}, []build.Error{e1, e2}, e1, ErrorsNotASwap, Reject},
		{"not-a-swap: two-for-one accepts", []build.Error{e1, e2}, []build.Error{e4}, e1, ErrorsNotASwap, Accept},
		{"not-a-swap: one-for-two accepts", []build.Error{e1}, []build.Error{e2, e4}, e1, ErrorsNotASwap, Accept},

		// ERRORS_NON_INCREASING
		{"non-increasing: subset accepts", []build.Error{e1, e2}, []build.Error{e2}, e1, ErrorsNonIncreasing, Accept},
		{"non-increasing: unchanged accepts", []build.Error{e1, e2}, []build.Error{e1, e2}, e1, ErrorsNonIncreasing, Accept},
		{"non-increasing: morphed targeted accepts", []build.Error{e1, e2}, []build.Error{e3, e2}, e1, ErrorsNonIncreasing, Accept},
		{"non-increasing: unrelated new error rejects", []build.Error{e1, e2}, []build.Error{e2, e4}, e1, ErrorsNonIncreasing, Reject},
		{"non-increasing: new error plus fix rejects", []build.Error{e1, e2}, []build.Error{e4}, e1, ErrorsNonIncreasing, Reject},

		// ERRORS_DECREASING
		{"decreasing: proper subset accepts", []build.Error{e1, e2}, []build.Error{e2}, e1, ErrorsDecreasing, Accept},
		{"decreasing: unchanged rejects", []build.Error{e1, e2}, []build.Error{e1, e2}, e1, ErrorsDecreasing, Reject},
		{"decreasing: swap rejects", []build.Error{e1, e2}, []build.Error{e3, e2}, e1, ErrorsDecreasing, Reject},
		{"decreasing: empty set accepts", []build.Error{e1}, nil, e1, ErrorsDecreasing, Accept},
		{"decreasing: smaller but not subset rejects", []build.Error{e1, e2}, []build.Error{e4}, e1, ErrorsDecreasing, Reject},

		// Unknown policy rejects, which reverts.
		{"unknown policy rejects", []build.Error{e1}, nil, e1, Policy("ERRORS_WHATEVER"), Reject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.previous, tt.current, tt.targeted, tt.policy)
			if got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPoliciesValid(t *testing.T) {
	for _, p := range Policies() {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Policy("ERRORS_SOMETHING").Valid() {
		t.Error("unknown policy should be invalid")
	}
}

func TestDecisionString(t *testing.T) {
	if Accept.String() != "ACCEPT" {
		t.Errorf("Accept.String() = %q", Accept.String())
	}
	if Reject.String() != "REJECT" {
		t.Errorf("Reject.String() = %q", Reject.String())
	}
}

func TestExplain(t *testing.T) {
	for _, p := range Policies() {
		msg := Explain(Reject, p)
		if !strings.Contains(msg, "reverted") {
			t.Errorf("Explain(Reject, %s) = %q, want revert feedback", p, msg)
		}
	}
	if msg := Explain(Accept, ErrorsDecreasing); strings.Contains(msg, "reverted") {
		t.Errorf("Explain(Accept) = %q, should not mention revert", msg)
	}
}

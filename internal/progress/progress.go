// Package progress decides whether a proposed fix made acceptable progress
// by comparing the error sets before and after the fix. All comparisons use
// build.Error identity (filename, error code, line number), never full-record
// equality, so message reformatting between runs does not flip a decision.
package progress

import (
	"fmt"

	"github.com/amazon-science/SDFeedback/internal/build"
)

// Policy selects the comparison rule applied after each verifying build.
type Policy string

const (
	// ErrorsDifferentFromBefore accepts any change to the error set,
	// including a lateral swap of one error for another.
	ErrorsDifferentFromBefore Policy = "ERRORS_DIFFERENT_FROM_BEFORE"

	// ErrorsNotASwap accepts any change except a pure 1:1 trade: exactly one
	// error gone, exactly one distinct new error appeared, everything else
	// unchanged.
	ErrorsNotASwap Policy = "ERRORS_NOT_A_SWAP"

	// ErrorsNonIncreasing accepts when every current error other than a
	// possibly persisting or morphed targeted error already existed before.
	ErrorsNonIncreasing Policy = "ERRORS_NON_INCREASING"

	// ErrorsDecreasing accepts only a strict proper subset of the previous
	// errors.
	ErrorsDecreasing Policy = "ERRORS_DECREASING"
)

// Policies lists all valid policy values.
func Policies() []Policy {
	return []Policy{ErrorsDifferentFromBefore, ErrorsNotASwap, ErrorsNonIncreasing, ErrorsDecreasing}
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case ErrorsDifferentFromBefore, ErrorsNotASwap, ErrorsNonIncreasing, ErrorsDecreasing:
		return true
	}
	return false
}

// Decision is the outcome of an evaluation. Reject always triggers rollback;
// Accept always triggers commit.
type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "ACCEPT"
	}
	return "REJECT"
}

// Evaluate compares the previous and current error sets under the policy.
// targeted is the error the iteration attempted to fix (the previous build's
// first error); it only influences ErrorsNonIncreasing. An unknown policy
// rejects, which is the safe direction (revert).
func Evaluate(previous, current []build.Error, targeted build.Error, policy Policy) Decision {
	prev := keySet(previous)
	curr := keySet(current)

	switch policy {
	case ErrorsDifferentFromBefore:
		return acceptIf(!equalSets(prev, curr))

	case ErrorsNotASwap:
		if isSwap(prev, curr) {
			return Reject
		}
		return acceptIf(!equalSets(prev, curr))

	case ErrorsNonIncreasing:
		// Every current error other than the targeted one must be
		// pre-existing. The targeted error may persist, vanish, or morph in
		// place (same file and line, new code).
		tkey := targeted.Identity()
		for k := range curr {
			if k == tkey {
				continue
			}
			if k.Filename == tkey.Filename && k.LineNumber == tkey.LineNumber {
				continue // morphed targeted error
			}
			if _, ok := prev[k]; !ok {
				return Reject
			}
		}
		return Accept

	case ErrorsDecreasing:
		return acceptIf(properSubset(curr, prev))
	}

	return Reject
}

// Explain returns a human-readable reason for a decision, used as revert
// feedback in the next prompt.
func Explain(d Decision, policy Policy) string {
	if d == Accept {
		return fmt.Sprintf("accepted under %s", policy)
	}
	switch policy {
	case ErrorsDifferentFromBefore:
		return "The build errors are all the same as before, after applying the suggested changes, therefore the changes are reverted."
	case ErrorsNotASwap:
		return "The suggested changes trade one build error for a new one without fixing anything else, therefore the changes are reverted."
	case ErrorsNonIncreasing:
		return "There are new build errors beyond the one being fixed, after applying the suggested changes, therefore the changes are reverted."
	case ErrorsDecreasing:
		return "The build errors don't decrease, after applying the suggested changes, therefore the changes are reverted."
	}
	return "The suggested changes were rejected and reverted."
}

// isSwap reports the pure 1:1 trade: |current \ previous| == 1,
// |previous \ current| == 1, and the shared remainder identical.
func isSwap(prev, curr map[build.Key]struct{}) bool {
	var added, removed int
	for k := range curr {
		if _, ok := prev[k]; !ok {
			added++
			if added > 1 {
				return false
			}
		}
	}
	for k := range prev {
		if _, ok := curr[k]; !ok {
			removed++
			if removed > 1 {
				return false
			}
		}
	}
	// With exactly one added and one removed, the intersections are already
	// the shared remainder on both sides.
	return added == 1 && removed == 1
}

func keySet(errors []build.Error) map[build.Key]struct{} {
	set := make(map[build.Key]struct{}, len(errors))
	for _, e := range errors {
		set[e.Identity()] = struct{}{}
	}
	return set
}

func equalSets(a, b map[build.Key]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// properSubset reports whether a ⊊ b.
func properSubset(a, b map[build.Key]struct{}) bool {
	if len(a) >= len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func acceptIf(cond bool) Decision {
	if cond {
		return Accept
	}
	return Reject
}

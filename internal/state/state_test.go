package state

import (
	"strings"
	"testing"
)

func TestEqual(t *testing.T) {
	a := New("/repo", "main", "abc123")
	b := New("/repo", "main", "abc123")
	c := New("/repo", "main", "def456")

	if !a.Equal(b) {
		t.Error("identical states should be equal")
	}
	if a.Equal(c) {
		t.Error("states with different commits should not be equal")
	}
	if a.Equal(New("/other", "main", "abc123")) {
		t.Error("states with different roots should not be equal")
	}
}

func TestWithCommitDoesNotMutate(t *testing.T) {
	a := New("/repo", "main", "abc123")
	b := a.WithCommit("def456")

	if a.CommitID != "abc123" {
		t.Errorf("receiver mutated: CommitID = %q", a.CommitID)
	}
	if b.CommitID != "def456" {
		t.Errorf("copy CommitID = %q, want def456", b.CommitID)
	}
	if b.RootDir != a.RootDir || b.Branch != a.Branch {
		t.Error("WithCommit should preserve root and branch")
	}
}

func TestIsZero(t *testing.T) {
	if !(State{}).IsZero() {
		t.Error("zero State should report IsZero")
	}
	if New("/repo", "main", "abc").IsZero() {
		t.Error("populated State should not report IsZero")
	}
}

func TestStringShortensCommit(t *testing.T) {
	s := New("/repo", "main", "0123456789abcdef")
	got := s.String()
	if !strings.Contains(got, "01234567") {
		t.Errorf("String() = %q, want 8-char commit", got)
	}
	if strings.Contains(got, "0123456789abcdef") {
		t.Errorf("String() = %q, commit not shortened", got)
	}
}

package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amazon-science/SDFeedback/internal/loop"
)

func TestNew(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})

	if m.width != 80 {
		t.Errorf("expected default width 80, got %d", m.width)
	}
	if m.height != 24 {
		t.Errorf("expected default height 24, got %d", m.height)
	}
	if m.done {
		t.Error("expected done to be false")
	}
}

func TestInit(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})
	cmd := m.Init()

	if cmd == nil {
		t.Error("Init should return a non-nil command")
	}
}

func TestUpdateWindowSize(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})

	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model := updated.(Model)

	if cmd != nil {
		t.Error("window size should not produce a command")
	}
	if model.width != 120 {
		t.Errorf("expected width 120, got %d", model.width)
	}
	if model.height != 40 {
		t.Errorf("expected height 40, got %d", model.height)
	}
}

func TestUpdateLogEntry(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})

	entry := logEntryMsg(loop.LogEntry{
		Kind:      loop.LogBuild,
		Timestamp: time.Now(),
		Message:   "BUILDING: 7 errors",
		Iteration: 1,
		MaxIter:   30,
		NumErrors: 7,
		Branch:    "feat/test",
	})

	updated, cmd := m.Update(entry)
	model := updated.(Model)

	if cmd == nil {
		t.Error("log entry should produce a command to wait for more events")
	}
	if model.iteration != 1 {
		t.Errorf("expected iteration 1, got %d", model.iteration)
	}
	if model.maxIter != 30 {
		t.Errorf("expected maxIter 30, got %d", model.maxIter)
	}
	if model.branch != "feat/test" {
		t.Errorf("expected branch feat/test, got %s", model.branch)
	}
	if model.numErrors != 7 {
		t.Errorf("expected numErrors 7, got %d", model.numErrors)
	}
	if len(model.lines) != 1 {
		t.Errorf("expected 1 log line, got %d", len(model.lines))
	}
}

func TestUpdateRunDone(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})

	updated, cmd := m.Update(runDoneMsg{})
	model := updated.(Model)

	if !model.done {
		t.Error("expected done after the event channel closes")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestQuitKey(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("expected quit command on q")
	}
}

func TestStopKey(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	calls := 0
	m := New(ch, Options{RequestStop: func() { calls++ }})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	model := updated.(Model)
	if calls != 1 {
		t.Fatalf("expected 1 stop call, got %d", calls)
	}
	if !model.stopRequested {
		t.Error("expected stopRequested")
	}

	// A second press must not fire again.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if calls != 1 {
		t.Errorf("expected stop to fire once, got %d calls", calls)
	}
	_ = updated
}

func TestViewContainsHeaderAndFooter(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{Project: "billing"})

	updated, _ := m.Update(logEntryMsg(loop.LogEntry{
		Kind: loop.LogBuild, Timestamp: time.Now(),
		Message: "BUILDING: 3 errors", NumErrors: 3, MaxIter: 10,
	}))
	model := updated.(Model)

	out := model.View()
	for _, want := range []string{"billing", "errors: 3", "BUILDING: 3 errors", "q quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestScrollKeys(t *testing.T) {
	ch := make(chan loop.LogEntry, 1)
	m := New(ch, Options{})
	m.height = 5 // 3 visible log lines

	for i := 0; i < 10; i++ {
		updated, _ := m.Update(logEntryMsg(loop.LogEntry{
			Kind: loop.LogInfo, Timestamp: time.Now(), Message: "line",
		}))
		m = updated.(Model)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	m = updated.(Model)
	if m.scrollOffset != 1 {
		t.Errorf("scrollOffset = %d, want 1", m.scrollOffset)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	m = updated.(Model)
	if m.scrollOffset != m.maxScrollOffset() {
		t.Errorf("scrollOffset = %d, want max %d", m.scrollOffset, m.maxScrollOffset())
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	m = updated.(Model)
	if m.scrollOffset != 0 {
		t.Errorf("scrollOffset = %d, want 0", m.scrollOffset)
	}
}

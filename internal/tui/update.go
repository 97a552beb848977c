package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amazon-science/SDFeedback/internal/loop"
)

// Update handles incoming messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case logEntryMsg:
		return m.handleLogEntry(msg)

	case runDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		if !m.stopRequested && m.opts.RequestStop != nil {
			m.opts.RequestStop()
			m.stopRequested = true
		}
	case "up", "k":
		if m.scrollOffset < m.maxScrollOffset() {
			m.scrollOffset++
		}
	case "down", "j":
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}
	case "pgup":
		m.scrollOffset += m.logHeight()
		m.clampScroll()
	case "pgdown":
		m.scrollOffset -= m.logHeight()
		m.clampScroll()
	case "home", "g":
		m.scrollOffset = m.maxScrollOffset()
	case "end", "G":
		m.scrollOffset = 0
	}
	return m, nil
}

func (m Model) handleLogEntry(msg logEntryMsg) (tea.Model, tea.Cmd) {
	entry := (loop.LogEntry)(msg)

	// Update state from entry metadata
	if entry.Branch != "" {
		m.branch = entry.Branch
	}
	if entry.Commit != "" {
		m.lastCommit = entry.Commit
	}
	if entry.MaxIter > 0 {
		m.maxIter = entry.MaxIter
	}
	if entry.Iteration > 0 {
		m.iteration = entry.Iteration
	}
	switch entry.Kind {
	case loop.LogBuild, loop.LogAccepted, loop.LogRejected:
		m.numErrors = entry.NumErrors
	}

	// Add to visible log
	m.lines = append(m.lines, logLine{entry: entry})

	// Continue listening
	return m, waitForEvent(m.events)
}

func (m Model) logHeight() int {
	h := m.height - 2 // 1 header + 1 footer
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) maxScrollOffset() int {
	max := len(m.lines) - m.logHeight()
	if max < 0 {
		max = 0
	}
	return max
}

func (m *Model) clampScroll() {
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
	if m.scrollOffset > m.maxScrollOffset() {
		m.scrollOffset = m.maxScrollOffset()
	}
}

package tui

import (
	"fmt"
	"strings"

	"github.com/amazon-science/SDFeedback/internal/loop"
)

// View renders the TUI: header bar, scrollable log, footer bar.
func (m Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	logView := m.renderLog(m.logHeight())

	return header + "\n" + logView + "\n" + footer
}

func (m Model) renderHeader() string {
	branch := m.branch
	if branch == "" {
		branch = "?"
	}
	errLabel := "?"
	if m.numErrors >= 0 {
		errLabel = fmt.Sprintf("%d", m.numErrors)
	}
	maxLabel := "?"
	if m.maxIter > 0 {
		maxLabel = fmt.Sprintf("%d", m.maxIter)
	}

	name := m.opts.Project
	if name == "" {
		name = "sdfix"
	}
	parts := []string{
		m.spin.View() + name,
		fmt.Sprintf("branch: %s", branch),
		fmt.Sprintf("iter: %d/%s", m.iteration, maxLabel),
		fmt.Sprintf("errors: %s", errLabel),
	}

	content := strings.Join(parts, "  |  ")
	return m.headerStyle.Width(m.width).Render(content)
}

func (m Model) renderFooter() string {
	commit := m.lastCommit
	if commit == "" {
		commit = "?"
	}
	if len(commit) > 8 {
		commit = commit[:8]
	}

	left := fmt.Sprintf("last commit: %s", commit)
	if m.stopRequested {
		left += "  (stopping after this iteration)"
	}
	right := "s stop after iteration  q quit"

	gap := m.width - len(left) - len(right)
	if gap < 2 {
		gap = 2
	}

	return footerStyle.Width(m.width).Render(
		left + strings.Repeat(" ", gap) + right,
	)
}

func (m Model) renderLog(height int) string {
	if len(m.lines) == 0 {
		return strings.Repeat("\n", height-1)
	}

	// Show the last `height` lines, shifted up by the scroll offset.
	end := len(m.lines) - m.scrollOffset
	if end > len(m.lines) {
		end = len(m.lines)
	}
	start := end - height
	if start < 0 {
		start = 0
	}
	visible := m.lines[start:end]

	var b strings.Builder
	for i, line := range visible {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.renderLine(line))
	}

	// Pad remaining lines if fewer than height
	remaining := height - len(visible)
	for i := 0; i < remaining; i++ {
		b.WriteByte('\n')
	}

	return b.String()
}

func (m Model) renderLine(line logLine) string {
	e := line.entry
	ts := timestampStyle.Render(fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05")))

	switch e.Kind {
	case loop.LogIterStart:
		return fmt.Sprintf("%s  -- iteration %d --", ts, e.Iteration)

	case loop.LogBuild:
		return fmt.Sprintf("%s  %s", ts, buildStyle.Render(e.Message))

	case loop.LogLlm:
		return fmt.Sprintf("%s  %s", ts, llmStyle.Render(e.Message))

	case loop.LogAccepted:
		return fmt.Sprintf("%s  %s", ts, acceptStyle.Render("ACCEPT "+e.Message))

	case loop.LogRejected:
		return fmt.Sprintf("%s  %s", ts, rejectStyle.Render("REJECT "+e.Message))

	case loop.LogError:
		return fmt.Sprintf("%s  %s", ts, errorStyle.Render(e.Message))

	case loop.LogDone:
		return fmt.Sprintf("%s  %s", ts, resultStyle.Render(e.Message))

	case loop.LogFailed, loop.LogStopped:
		return fmt.Sprintf("%s  %s", ts, errorStyle.Render(e.Message))

	default:
		return fmt.Sprintf("%s  %s", ts, infoStyle.Render(e.Message))
	}
}

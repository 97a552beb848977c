package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amazon-science/SDFeedback/internal/loop"
)

// logLine is a rendered log entry for display.
type logLine struct {
	entry loop.LogEntry
}

// Options configures the TUI.
type Options struct {
	Project     string
	AccentColor string
	RequestStop func() // invoked once when the user presses 's'
}

// Model is the bubbletea model for the fix loop TUI.
type Model struct {
	events <-chan loop.LogEntry
	opts   Options

	spin spinner.Model

	// Display state
	lines        []logLine
	width        int
	height       int
	scrollOffset int

	// Accent-dependent styles
	headerStyle lipgloss.Style

	// Run state
	branch        string
	lastCommit    string
	iteration     int
	maxIter       int
	numErrors     int
	stopRequested bool
	done          bool
	err           error
}

// logEntryMsg wraps a LogEntry as a bubbletea message.
type logEntryMsg loop.LogEntry

// runDoneMsg signals the event channel has closed.
type runDoneMsg struct{}

// New creates a TUI Model that consumes events from the given channel.
func New(events <-chan loop.LogEntry, opts Options) Model {
	accent := opts.AccentColor
	if accent == "" {
		accent = defaultAccentColor
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(accent))
	return Model{
		events: events,
		opts:   opts,
		spin:   sp,
		width:  80,
		height: 24,
		headerStyle: lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(lipgloss.Color(accent)).
			Bold(true).
			Padding(0, 1),
		numErrors: -1,
	}
}

// Init returns the initial commands: start listening for events and
// animate the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spin.Tick)
}

// Err returns any error that occurred during the run.
func (m Model) Err() error {
	return m.err
}

// waitForEvent returns a command that blocks on the event channel.
func waitForEvent(ch <-chan loop.LogEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return runDoneMsg{}
		}
		return logEntryMsg(entry)
	}
}

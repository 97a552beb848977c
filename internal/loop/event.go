package loop

import "time"

// LogKind identifies the type of a loop log event.
type LogKind int

const (
	LogInfo      LogKind = iota // General informational message
	LogIterStart                // Iteration starting
	LogBuild                    // Build finished, error count known
	LogLlm                      // Model call finished
	LogPatch                    // Patch parsed and applied
	LogAccepted                 // Fix accepted and committed
	LogRejected                 // Fix rejected and reverted
	LogError                    // Recoverable error inside an iteration
	LogDone                     // Run reached a clean build
	LogFailed                   // Run ended without a clean build
	LogStopped                  // Run stopped (cancellation)
)

// LogEntry is a structured event emitted by the loop during execution.
// When the Loop.Events channel is set, entries are sent there for TUI
// consumption. Otherwise, they fall back to the Loop.Log io.Writer.
type LogEntry struct {
	Kind      LogKind
	Timestamp time.Time
	Message   string

	// Iteration state
	Iteration int
	MaxIter   int

	// Build state
	NumErrors int

	// Decision state
	Decision string

	// Git state
	Branch string
	Commit string

	// Run identity
	RunID string
}

// Package llm defines the language model collaborator: a stateless
// per-call client plus the prompt construction for build-error fixes.
package llm

import "context"

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a conversation prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt carries either a flat prompt string or a role-tagged message list,
// never both. SystemPrompt may accompany either form.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Prompt       string    `json:"prompt,omitempty"`
	Messages     []Message `json:"prompt_messages,omitempty"`
}

// Flat reports whether p uses the flat string form.
func (p Prompt) Flat() bool {
	return len(p.Messages) == 0
}

// Client is the language model backend. Implementations must be stateless
// per call; retries are the caller's concern.
type Client interface {
	Invoke(ctx context.Context, prompt Prompt) (string, error)
}

// ErrorType classifies a remote failure for retry and audit purposes.
type ErrorType string

const (
	ErrorThrottled ErrorType = "throttled"
	ErrorAuth      ErrorType = "auth"
	ErrorInvalid   ErrorType = "invalid_request"
	ErrorNetwork   ErrorType = "network"
	ErrorEmpty     ErrorType = "empty_response"
	ErrorUnknown   ErrorType = "unknown"
)

// Error is a classified failure from the model backend.
type Error struct {
	Type ErrorType `json:"error_type"`
	Err  string    `json:"error"`
}

func (e *Error) Error() string {
	return string(e.Type) + ": " + e.Err
}

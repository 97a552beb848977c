package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures the OpenAI-compatible client. BaseURL allows
// pointing at any endpoint that speaks the chat-completions protocol.
type OpenAIOptions struct {
	Model       string
	BaseURL     string
	APIKeyEnv   string // environment variable holding the key; defaults to OPENAI_API_KEY
	MaxTokens   int
	Temperature float32
}

// OpenAIClient implements Client over the chat-completions API.
type OpenAIClient struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAIClient creates a client from options, reading the API key from
// the configured environment variable.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	keyEnv := opts.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("llm: %s is not set", keyEnv)
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), opts: opts}, nil
}

// Invoke sends the prompt as a single chat completion and returns the first
// choice's text. Failures are classified into *Error so the retry policy and
// trajectory can distinguish throttling from terminal mistakes.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
	}
	if c.opts.MaxTokens > 0 {
		req.MaxTokens = c.opts.MaxTokens
	}

	if prompt.SystemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt,
		})
	}
	if prompt.Flat() {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser, Content: prompt.Prompt,
		})
	} else {
		for _, m := range prompt.Messages {
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role: m.Role, Content: m.Content,
			})
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &Error{Type: ErrorEmpty, Err: "model returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps transport and API failures onto the Error taxonomy.
func classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &Error{Type: ErrorThrottled, Err: err.Error()}
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return &Error{Type: ErrorAuth, Err: err.Error()}
		case apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500:
			return &Error{Type: ErrorInvalid, Err: err.Error()}
		}
		return &Error{Type: ErrorUnknown, Err: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Type: ErrorNetwork, Err: err.Error()}
	}
	return &Error{Type: ErrorUnknown, Err: err.Error()}
}

package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amazon-science/SDFeedback/internal/build"
)

// DefaultSystemPrompt frames the model's task for every request.
const DefaultSystemPrompt = "You are an expert software engineer fixing build errors. " +
	"Respond with the complete corrected file in a fenced code block headed " +
	"by `File: <path>`, or with a unified diff. Do not explain unless asked."

// feedbackPreamble introduces rejection details when re-prompting after a
// reverted fix.
const feedbackPreamble = "The response is incorrect, as it doesn't fix the build error. " +
	"Please generate a full solution again.\nBelow are details:"

// PromptBuilder constructs prompts for fix attempts. MaxContextFiles bounds
// how many additional files from the remaining errors are attached beyond
// the targeted file.
type PromptBuilder struct {
	RootDir         string
	SystemPrompt    string
	MaxContextFiles int
}

// NewPromptBuilder creates a PromptBuilder for the repository root.
func NewPromptBuilder(rootDir string, maxContextFiles int) *PromptBuilder {
	return &PromptBuilder{
		RootDir:         rootDir,
		SystemPrompt:    DefaultSystemPrompt,
		MaxContextFiles: maxContextFiles,
	}
}

// Build constructs a flat prompt for the targeted error, attaching the
// targeted file's content and up to MaxContextFiles other files that also
// have errors this round.
func (b *PromptBuilder) Build(targeted build.Error, rest []build.Error) Prompt {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Fix the following build error in the repository at `%s`.\n\n", b.RootDir)
	fmt.Fprintf(&sb, "File: %s\n", targeted.Filename)
	if targeted.LineNumber > 0 {
		fmt.Fprintf(&sb, "Line: %d", targeted.LineNumber)
		if targeted.ColumnNumber > 0 {
			fmt.Fprintf(&sb, ", column %d", targeted.ColumnNumber)
		}
		sb.WriteString("\n")
	}
	if targeted.ErrorCode != "" {
		fmt.Fprintf(&sb, "Error code: %s\n", targeted.ErrorCode)
	}
	fmt.Fprintf(&sb, "Error message:\n```\n%s\n```\n", targeted.ErrorMessage)

	if content, err := b.loadFile(targeted.Filename); err == nil && content != "" {
		fmt.Fprintf(&sb, "\nCurrent content of `%s`:\n```\n%s\n```\n", targeted.Filename, content)
	}

	if files := b.contextFiles(targeted, rest); len(files) > 0 {
		sb.WriteString("\nHere is more context:\n\n<context_files>\n")
		for _, f := range files {
			content, err := b.loadFile(f)
			if err != nil || content == "" {
				continue
			}
			fmt.Fprintf(&sb, "File `%s`:```\n%s\n```\n", f, content)
		}
		sb.WriteString("</context_files>\n")
	}

	return Prompt{SystemPrompt: b.SystemPrompt, Prompt: sb.String()}
}

// WithFeedback extends a rejected attempt into a conversation: the prior
// prompt, the model's rejected response, and the rejection reasons. When the
// conversation already has more than maxRounds messages, it restarts with
// the fresh prompt instead of growing without bound.
func (b *PromptBuilder) WithFeedback(fresh Prompt, previous Prompt, lastResponse string, feedback []string, maxRounds int) Prompt {
	if len(feedback) == 0 || lastResponse == "" {
		return fresh
	}

	history := previous.Messages
	if previous.Flat() && previous.Prompt != "" {
		history = []Message{{Role: RoleUser, Content: previous.Prompt}}
	}
	if maxRounds > 0 && len(history) > maxRounds {
		return fresh
	}

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleAssistant, Content: lastResponse})

	var sb strings.Builder
	sb.WriteString(feedbackPreamble)
	for i, f := range feedback {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, f)
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: sb.String()})

	return Prompt{SystemPrompt: fresh.SystemPrompt, Messages: msgs}
}

// contextFiles returns up to MaxContextFiles distinct filenames from the
// remaining errors, excluding the targeted file, in emission order.
func (b *PromptBuilder) contextFiles(targeted build.Error, rest []build.Error) []string {
	if b.MaxContextFiles <= 0 {
		return nil
	}
	seen := map[string]bool{targeted.Filename: true}
	var files []string
	for _, e := range rest {
		if e.Filename == "" || seen[e.Filename] {
			continue
		}
		seen[e.Filename] = true
		files = append(files, e.Filename)
		if len(files) == b.MaxContextFiles {
			break
		}
	}
	return files
}

// loadFile reads a file relative to the repository root (absolute paths are
// honored as-is).
func (b *PromptBuilder) loadFile(name string) (string, error) {
	if name == "" {
		return "", os.ErrNotExist
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.RootDir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Package llm abstracts the chat models used to critique strategies.
package llm

import (
	"context"
	"fmt"

	"github.com/newthinker/strategylab/internal/core"
)

// DefaultMaxTokens caps replies when a prompt leaves MaxTokens unset.
const DefaultMaxTokens = 1024

// Provider sends one review prompt to a model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}

// Prompt is a single system plus user turn. The review flow never needs a
// conversation history.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// TokenLimit is MaxTokens, or DefaultMaxTokens when unset.
func (p Prompt) TokenLimit() int {
	if p.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return p.MaxTokens
}

// Completion is a model reply.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	// Truncated is set when the reply stopped at the token limit.
	Truncated bool
}

// Failed tags err from the named provider as LLM_FAILED.
func Failed(provider string, err error) error {
	return core.WrapError(core.ErrLLMFailed, fmt.Errorf("%s: %w", provider, err))
}

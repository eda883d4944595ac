// Package factory builds the configured llm.Provider.
package factory

import (
	"fmt"

	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/llm"
	"github.com/newthinker/strategylab/internal/llm/claude"
	"github.com/newthinker/strategylab/internal/llm/ollama"
	"github.com/newthinker/strategylab/internal/llm/openai"
)

// New returns the provider cfg.Provider names, or (nil, nil) when none is
// set so that feedback stays optional.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		return claude.New(cfg.Claude)
	case "openai":
		return openai.New(cfg.OpenAI)
	case "gemini":
		return openai.NewGemini(cfg.Gemini)
	case "ollama":
		return ollama.New(cfg.Ollama)
	}
	return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown LLM provider %q", cfg.Provider))
}

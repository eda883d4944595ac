// Package openai reviews strategies through the chat completions API. Any
// OpenAI-compatible endpoint works, which is how Gemini is served.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/llm"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

const (
	defaultModel       = "gpt-4o"
	defaultGeminiModel = "gemini-2.0-flash"
)

// Provider talks to one chat completions endpoint. name is what metrics
// and logs see.
type Provider struct {
	client *openai.Client
	model  string
	name   string
}

func New(cfg config.OpenAIConfig) (*Provider, error) {
	return newProvider("openai", cfg.APIKey, orDefault(cfg.Model, defaultModel), cfg.BaseURL)
}

// NewGemini targets Google's OpenAI-compatible endpoint.
func NewGemini(cfg config.GeminiConfig) (*Provider, error) {
	return newProvider("gemini", cfg.APIKey, orDefault(cfg.Model, defaultGeminiModel), GeminiBaseURL)
}

func newProvider(name, apiKey, model, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s: API key required", name))
	}
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	return &Provider{client: openai.NewClientWithConfig(cc), model: model, name: name}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Complete(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt.User},
	}
	if prompt.System != "" {
		messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
		}, messages...)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   prompt.TokenLimit(),
		Temperature: float32(prompt.Temperature),
	})
	if err != nil {
		return nil, llm.Failed(p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.Failed(p.name, errors.New("no choices in response"))
	}

	choice := resp.Choices[0]
	return &llm.Completion{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Truncated:    choice.FinishReason == openai.FinishReasonLength,
	}, nil
}

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/llm"
)

var _ llm.Provider = (*Provider)(nil)

func TestNew(t *testing.T) {
	_, err := New(config.OpenAIConfig{})
	assert.True(t, errors.Is(err, core.ErrConfigMissing), "got %v", err)

	p, err := New(config.OpenAIConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, defaultModel, p.model)

	g, err := NewGemini(config.GeminiConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", g.Name())
	assert.Equal(t, defaultGeminiModel, g.model)

	_, err = NewGemini(config.GeminiConfig{})
	assert.True(t, errors.Is(err, core.ErrConfigMissing))
}

type completionRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionsServer(t *testing.T, status int, reply string, got *completionRequest) *Provider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	p, err := New(config.OpenAIConfig{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL})
	require.NoError(t, err)
	return p
}

func TestComplete(t *testing.T) {
	var got completionRequest
	p := completionsServer(t, http.StatusOK, `{
		"id": "c1", "object": "chat.completion", "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Add a stop loss."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
	}`, &got)

	out, err := p.Complete(context.Background(), llm.Prompt{System: "review", User: "df['position'] = 1", MaxTokens: 200})
	require.NoError(t, err)

	assert.Equal(t, "Add a stop loss.", out.Text)
	assert.Equal(t, "gpt-test", out.Model)
	assert.Equal(t, 20, out.InputTokens)
	assert.Equal(t, 5, out.OutputTokens)
	assert.False(t, out.Truncated)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "df['position'] = 1", got.Messages[1].Content)
}

func TestComplete_NoSystemPrompt(t *testing.T) {
	var got completionRequest
	p := completionsServer(t, http.StatusOK, `{
		"id": "c2", "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Too"}, "finish_reason": "length"}]
	}`, &got)

	out, err := p.Complete(context.Background(), llm.Prompt{User: "x"})
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, llm.DefaultMaxTokens, got.MaxTokens)
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"no choices", http.StatusOK, `{"id": "c1", "choices": []}`},
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := completionsServer(t, tt.status, tt.reply, nil)
			_, err := p.Complete(context.Background(), llm.Prompt{User: "x"})
			assert.True(t, errors.Is(err, core.ErrLLMFailed), "got %v", err)
		})
	}
}

package ollama

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
	p, err := New(config.OllamaConfig{})
	require.NoError(t, err)
	assert.Equal(t, defaultEndpoint, p.endpoint)
	assert.Equal(t, defaultModel, p.model)

	p, err = New(config.OllamaConfig{Endpoint: "http://gpu-box:11434/", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", p.endpoint)
	assert.Equal(t, "llama3", p.model)
}

func TestComplete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Too few trades."},"done":true,"done_reason":"stop","prompt_eval_count":30,"eval_count":4}`))
	}))
	defer server.Close()

	p, err := New(config.OllamaConfig{Endpoint: server.URL, Model: "llama3"})
	require.NoError(t, err)
	out, err := p.Complete(context.Background(), llm.Prompt{System: "review", User: "df['position'] = 1", Temperature: 0.3})
	require.NoError(t, err)

	assert.Equal(t, "Too few trades.", out.Text)
	assert.Equal(t, "llama3", out.Model)
	assert.Equal(t, 30, out.InputTokens)
	assert.Equal(t, 4, out.OutputTokens)
	assert.False(t, out.Truncated)

	assert.False(t, got.Stream)
	assert.Equal(t, llm.DefaultMaxTokens, got.Options.NumPredict)
	assert.InDelta(t, 0.3, got.Options.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestComplete_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"missing\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	p, _ := New(config.OllamaConfig{Endpoint: server.URL, Model: "missing"})
	_, err := p.Complete(context.Background(), llm.Prompt{User: "x"})
	assert.True(t, errors.Is(err, core.ErrLLMFailed), "got %v", err)
	assert.Contains(t, err.Error(), "try pulling it first")
}

func TestComplete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p, _ := New(config.OllamaConfig{Endpoint: url})
	_, err := p.Complete(context.Background(), llm.Prompt{User: "x"})
	assert.True(t, errors.Is(err, core.ErrLLMFailed), "got %v", err)
}

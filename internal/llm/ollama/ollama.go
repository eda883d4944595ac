// Package ollama reviews strategies with a local model through Ollama's
// /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/llm"
)

const (
	name            = "ollama"
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "qwen2.5:32b"

	// local inference on large models is slow; the caller's context
	// usually ends the request first
	clientTimeout = 5 * time.Minute
)

type Provider struct {
	endpoint string
	model    string
	client   *http.Client
}

// New builds a provider from cfg. Empty fields fall back to a local server
// and a default model; no key is needed.
func New(cfg config.OllamaConfig) (*Provider, error) {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: clientTimeout},
	}, nil
}

func (p *Provider) Name() string { return name }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type chatResponse struct {
	Model           string  `json:"model"`
	Message         message `json:"message"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

func (p *Provider) Complete(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	body := chatRequest{
		Model: p.model,
		Options: options{
			NumPredict:  prompt.TokenLimit(),
			Temperature: prompt.Temperature,
		},
	}
	if prompt.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: prompt.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: prompt.User})

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, llm.Failed(name, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		// ollama reports {"error": "..."}; fall back to the raw body
		if json.Unmarshal(raw, &out) != nil || out.Error == "" {
			out.Error = string(bytes.TrimSpace(raw))
		}
		return nil, llm.Failed(name, fmt.Errorf("status %d: %s", resp.StatusCode, out.Error))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, llm.Failed(name, fmt.Errorf("decoding response: %w", err))
	}

	return &llm.Completion{
		Text:         out.Message.Content,
		Model:        out.Model,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		Truncated:    out.DoneReason == "length",
	}, nil
}

// Package feedback asks an LLM to critique a strategy given its source and
// backtest summary.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/backtest"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/llm"
)

// SkippedMessage is returned when no provider is configured.
const SkippedMessage = "Feedback skipped (no LLM provider configured)."

const systemPrompt = "You review trading strategies. Point out weaknesses, " +
	"overfitting risks and concrete improvements. Be concise."

// Recorder receives one count per feedback request.
type Recorder interface {
	RecordFeedback(provider, status string)
}

// Options tunes a Summarizer. Zero values use defaults.
type Options struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Recorder    Recorder
}

// Summarizer produces strategy feedback. A nil provider disables it.
type Summarizer struct {
	provider llm.Provider
	opts     Options
	logger   *zap.Logger
}

// New creates a summarizer over provider, which may be nil.
func New(provider llm.Provider, opts Options, logger ...*zap.Logger) *Summarizer {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Summarizer{provider: provider, opts: opts, logger: l}
}

// Enabled reports whether a provider is configured.
func (s *Summarizer) Enabled() bool {
	return s.provider != nil
}

// Analyze returns the model's critique. With no provider it returns
// SkippedMessage and no error.
func (s *Summarizer) Analyze(ctx context.Context, code string, rep backtest.Report) (string, error) {
	if s.provider == nil {
		s.record("none", "skipped")
		return SkippedMessage, nil
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	out, err := s.provider.Complete(ctx, llm.Prompt{
		System:      systemPrompt,
		User:        Prompt(code, rep),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.record(s.provider.Name(), "error")
		if core.Code(err) == "" {
			err = llm.Failed(s.provider.Name(), err)
		}
		return "", err
	}

	s.record(s.provider.Name(), "success")
	fields := []zap.Field{
		zap.String("provider", s.provider.Name()),
		zap.String("model", out.Model),
		zap.Int("input_tokens", out.InputTokens),
		zap.Int("output_tokens", out.OutputTokens),
	}
	if out.Truncated {
		s.logger.Warn("feedback cut off at token limit", fields...)
	} else {
		s.logger.Debug("feedback generated", fields...)
	}
	return strings.TrimSpace(out.Text), nil
}

// Feedback is Analyze for display: failures become a short message instead
// of an error.
func (s *Summarizer) Feedback(ctx context.Context, code string, rep backtest.Report) string {
	text, err := s.Analyze(ctx, code, rep)
	if err != nil {
		s.logger.Warn("feedback failed", zap.Error(err))
		return fmt.Sprintf("Feedback unavailable: %v", err)
	}
	return text
}

func (s *Summarizer) record(provider, status string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordFeedback(provider, status)
	}
}

// Prompt renders the request sent to the model.
func Prompt(code string, rep backtest.Report) string {
	var b strings.Builder
	b.WriteString("Analyze this trading strategy")
	if rep.Symbol != "" {
		fmt.Fprintf(&b, " backtested on %s", rep.Symbol)
		if rep.Interval != "" {
			fmt.Fprintf(&b, " (%s bars)", rep.Interval)
		}
	}
	b.WriteString(":\n\n--- Code ---\n")
	b.WriteString(strings.TrimSpace(code))
	b.WriteString("\n\n--- Backtest ---\n")
	fmt.Fprintf(&b, "Final Equity: $%.2f\n", rep.FinalEquity)
	fmt.Fprintf(&b, "Total Return: $%.2f\n", rep.TotalReturn)
	fmt.Fprintf(&b, "Win Rate: %.2f%%\n", rep.WinRate*100)
	fmt.Fprintf(&b, "Sharpe Ratio: %.4f\n", rep.SharpeRatio)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", rep.MaxDrawdown*100)
	fmt.Fprintf(&b, "Periods: %d\n", rep.Periods)
	return b.String()
}

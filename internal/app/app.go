// Package app wires configuration into a working backtest service: price
// providers, the strategy runner, storage, feedback and metrics.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/backtest"
	"github.com/newthinker/strategylab/internal/collector"
	"github.com/newthinker/strategylab/internal/collector/alpaca"
	"github.com/newthinker/strategylab/internal/collector/binance"
	"github.com/newthinker/strategylab/internal/collector/yahoo"
	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/feedback"
	"github.com/newthinker/strategylab/internal/llm"
	"github.com/newthinker/strategylab/internal/llm/factory"
	"github.com/newthinker/strategylab/internal/loader"
	"github.com/newthinker/strategylab/internal/metrics"
	"github.com/newthinker/strategylab/internal/plugin"
	"github.com/newthinker/strategylab/internal/report"
	"github.com/newthinker/strategylab/internal/series"
	"github.com/newthinker/strategylab/internal/storage/archive"
	"github.com/newthinker/strategylab/internal/storage/record"
)

// Option overrides a dependency New would otherwise build from config.
type Option func(*options)

type options struct {
	providers []collector.Provider
	llm       llm.Provider
	llmSet    bool
	records   record.Store
	archive   archive.Storage
	metrics   *metrics.Registry
	now       func() time.Time
}

// WithProvider registers p in place of the configured provider of the same
// name. p is used as is; Init is not called.
func WithProvider(p collector.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, p) }
}

// WithLLM sets the feedback model. nil disables feedback.
func WithLLM(p llm.Provider) Option {
	return func(o *options) { o.llm, o.llmSet = p, true }
}

// WithRecords sets the record store.
func WithRecords(s record.Store) Option {
	return func(o *options) { o.records = s }
}

// WithArchive sets the source and export storage.
func WithArchive(s archive.Storage) Option {
	return func(o *options) { o.archive = s }
}

// WithMetrics sets the metrics registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) { o.metrics = r }
}

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	providers  *collector.Registry
	runner     *plugin.Runner
	backtester *backtest.Backtester
	loader     *loader.Loader
	archive    archive.Storage
	records    record.Store
	feedback   *feedback.Summarizer
	metrics    *metrics.Registry
	now        func() time.Time

	closeOnce sync.Once
}

// New builds an App from cfg.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{cfg: cfg, logger: logger, now: o.now}

	a.metrics = o.metrics
	if a.metrics == nil && cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	a.providers = collector.NewRegistry()
	if err := a.registerProviders(o.providers); err != nil {
		return nil, err
	}
	provider, err := a.providers.Lookup(cfg.Data.Provider)
	if err != nil {
		return nil, err
	}

	a.runner = plugin.NewRunner(plugin.Options{
		Form:            core.StrategyForm(cfg.Plugin.Form),
		EntryPoint:      cfg.Plugin.EntryPoint,
		Timeout:         cfg.Plugin.Timeout,
		MaxSeriesLength: cfg.Plugin.MaxSeriesLength,
		MaxSteps:        cfg.Plugin.MaxSteps,
	}, logger.Named("plugin"))

	a.backtester = backtest.New(provider, a.runner, backtest.Config{
		InitialCapital:      cfg.Backtest.InitialCapital,
		AnnualizationFactor: cfg.Backtest.AnnualizationFactor,
	}, logger.Named("backtest"))

	a.archive = o.archive
	if a.archive == nil {
		if a.archive, err = archive.New(cfg.Storage.Archive); err != nil {
			return nil, fmt.Errorf("creating archive: %w", err)
		}
	}
	a.loader = loader.New(a.archive, logger)

	a.records = o.records
	if a.records == nil {
		if a.records, err = record.New(cfg.Storage.Records); err != nil {
			return nil, fmt.Errorf("opening record store: %w", err)
		}
	}

	model := o.llm
	if !o.llmSet {
		if model, err = factory.New(cfg.LLM); err != nil {
			a.records.Close()
			return nil, fmt.Errorf("creating LLM provider: %w", err)
		}
	}
	fbOpts := feedback.Options{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}
	if a.metrics != nil {
		fbOpts.Recorder = a.metrics
	}
	a.feedback = feedback.New(model, fbOpts, logger.Named("feedback"))

	logger.Info("app ready",
		zap.String("provider", cfg.Data.Provider),
		zap.Strings("providers", a.providers.Names()),
		zap.String("form", cfg.Plugin.Form),
		zap.Bool("feedback", a.feedback.Enabled()),
	)
	return a, nil
}

// registerProviders initializes the built-in providers from config and then
// applies overrides. A provider that fails Init is skipped unless it is the
// selected one.
func (a *App) registerProviders(overrides []collector.Provider) error {
	builtin := []collector.Provider{yahoo.New(), alpaca.New(), binance.New()}
	for _, p := range builtin {
		c := a.cfg.Collector(p.Name())
		err := p.Init(collector.Config{
			APIKey:    c.APIKey,
			APISecret: c.APISecret,
			BaseURL:   c.BaseURL,
			Timeout:   c.Timeout,
			Extra:     c.Extra,
		})
		if err != nil {
			if p.Name() == a.cfg.Data.Provider && !overridden(overrides, p.Name()) {
				return fmt.Errorf("initializing %s: %w", p.Name(), err)
			}
			a.logger.Debug("provider unavailable", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		a.providers.Register(p)
	}
	for _, p := range overrides {
		a.providers.Register(p)
	}
	return nil
}

func overridden(ps []collector.Provider, name string) bool {
	for _, p := range ps {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Metrics returns the registry, or nil when metrics are disabled.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Providers returns the provider registry.
func (a *App) Providers() *collector.Registry { return a.providers }

// Close releases the record store.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() { err = a.records.Close() })
	return err
}

// Request describes a backtest. Empty market fields take the configured
// defaults.
type Request struct {
	Symbol   string `json:"symbol"`
	Period   string `json:"period"`
	Interval string `json:"interval"`
	Source   string `json:"source"`
	Feedback bool   `json:"feedback"`
	Export   bool   `json:"export"`
}

func (a *App) withDefaults(req Request) Request {
	if req.Symbol == "" {
		req.Symbol = a.cfg.Data.Symbol
	}
	if req.Period == "" {
		req.Period = a.cfg.Data.Period
	}
	if req.Interval == "" {
		req.Interval = a.cfg.Data.Interval
	}
	return req
}

// Outcome is a finished backtest with its presentation extras.
type Outcome struct {
	*backtest.Outcome `json:"-"`
	Report     backtest.Report `json:"report"`
	Feedback   string          `json:"feedback,omitempty"`
	ExportPath string          `json:"export_path,omitempty"`
}

// Backtest runs req.Source against freshly fetched prices.
func (a *App) Backtest(ctx context.Context, req Request) (*Outcome, error) {
	req = a.withDefaults(req)
	start := a.now()

	prices, err := a.backtester.Series(ctx, req.Symbol, req.Period, req.Interval)
	if err != nil {
		a.recordBacktest(start, err)
		return nil, err
	}
	return a.backtestOn(ctx, req, prices, start)
}

// BacktestFile loads the strategy at path and runs it.
func (a *App) BacktestFile(ctx context.Context, path string, req Request) (*Outcome, error) {
	src, err := a.loader.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	req.Source = src
	return a.Backtest(ctx, req)
}

func (a *App) backtestOn(ctx context.Context, req Request, prices *series.Frame, start time.Time) (*Outcome, error) {
	out, err := a.backtester.RunOn(ctx, backtest.Request{
		Symbol:   req.Symbol,
		Period:   req.Period,
		Interval: req.Interval,
		Source:   req.Source,
	}, prices)
	a.recordBacktest(start, err)
	if err != nil {
		return nil, err
	}

	result := &Outcome{Outcome: out, Report: out.Report()}
	if req.Feedback {
		result.Feedback = a.feedback.Feedback(ctx, req.Source, result.Report)
	}
	if req.Export {
		path := report.ExportPath(req.Symbol, a.now())
		if err := report.ExportParquet(ctx, a.archive, path, result.Report); err != nil {
			// The backtest itself succeeded.
			a.logger.Warn("export failed", zap.String("path", path), zap.Error(err))
		} else {
			result.ExportPath = path
		}
	}
	return result, nil
}

func (a *App) recordBacktest(start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailure
		if isPluginFailure(err) {
			a.metrics.RecordPluginFailure(core.Code(err))
		}
	}
	a.metrics.RecordBacktest(status, a.now().Sub(start).Seconds())
}

func isPluginFailure(err error) bool {
	switch core.Code(err) {
	case core.ErrPluginNotFound.Code, core.ErrPluginSyntax.Code, core.ErrPluginRuntime.Code,
		core.ErrPluginTimeout.Code, core.ErrSeriesTooLong.Code, core.ErrContractViolation.Code:
		return true
	}
	return false
}

// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handlerapi "github.com/newthinker/strategylab/internal/api/handler/api"
	"github.com/newthinker/strategylab/internal/api/job"
	"github.com/newthinker/strategylab/internal/api/middleware"
	"github.com/newthinker/strategylab/internal/api/response"
	"github.com/newthinker/strategylab/internal/metrics"
)

// Server represents the HTTP server for the backtest API.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
	jobs       *job.Store
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	MaxJobs     int
	JobTTL      time.Duration
	MetricsPath string
}

// Dependencies holds what the handlers need from the application.
type Dependencies struct {
	Backtests  handlerapi.BacktestApp
	Strategies handlerapi.StrategyApp
	// Metrics is optional; nil disables the metrics endpoint.
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Backtests == nil || deps.Strategies == nil {
		return nil, fmt.Errorf("api: backtest and strategy services are required")
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}

	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	s.handler = metrics.LoggingMiddleware(logger.Named("http"))(handler)

	// Synchronous strategy runs include the data fetch and LLM feedback.
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	var gauge handlerapi.JobGauge
	if deps.Metrics != nil {
		gauge = deps.Metrics
	}
	backtests := handlerapi.NewBacktestHandler(s.jobs, deps.Backtests, gauge, s.logger.Named("jobs"))
	strategies := handlerapi.NewStrategyHandler(deps.Strategies)
	owned := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireOwner(h)
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/backtests", backtests.Create)
	s.mux.HandleFunc("GET /api/v1/backtests/{id}", backtests.GetStatus)

	s.mux.Handle("POST /api/v1/strategies", owned(strategies.Create))
	s.mux.Handle("GET /api/v1/strategies", owned(strategies.List))
	s.mux.Handle("POST /api/v1/strategies/run", owned(strategies.RunAll))
	s.mux.Handle("GET /api/v1/strategies/{id}", owned(strategies.Get))
	s.mux.Handle("DELETE /api/v1/strategies/{id}", owned(strategies.Delete))
	s.mux.Handle("POST /api/v1/strategies/{id}/run", owned(strategies.Run))

	if deps.Metrics != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   len(s.jobs.List()),
	})
}

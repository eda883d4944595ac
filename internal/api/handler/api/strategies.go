// internal/api/handler/api/strategies.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/strategylab/internal/api/middleware"
	"github.com/newthinker/strategylab/internal/api/response"
	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/core"
)

// StrategyApp defines the interface needed from app.App.
type StrategyApp interface {
	AddStrategy(ctx context.Context, owner, name, source string) (*core.StrategyRecord, error)
	ListStrategies(ctx context.Context, owner string) ([]core.StrategyRecord, error)
	GetStrategy(ctx context.Context, owner, id string) (*core.StrategyRecord, error)
	DeleteStrategy(ctx context.Context, owner, id string) error
	RunStrategy(ctx context.Context, owner, id string, req app.Request) (*app.Outcome, error)
	RunOwner(ctx context.Context, owner string, req app.Request) ([]app.OwnerResult, error)
}

// StrategyHandler handles saved strategy requests. Every route expects
// middleware.RequireOwner in front of it.
type StrategyHandler struct {
	app StrategyApp
}

// NewStrategyHandler creates a new strategy handler.
func NewStrategyHandler(app StrategyApp) *StrategyHandler {
	return &StrategyHandler{app: app}
}

// CreateRequest is the request body for saving a strategy.
type CreateRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// RunRequest overrides the market and extras of a saved strategy run.
type RunRequest struct {
	Symbol   string `json:"symbol,omitempty"`
	Period   string `json:"period,omitempty"`
	Interval string `json:"interval,omitempty"`
	Feedback bool   `json:"feedback,omitempty"`
	Export   bool   `json:"export,omitempty"`
}

func (rr RunRequest) request() app.Request {
	return app.Request{
		Symbol:   rr.Symbol,
		Period:   rr.Period,
		Interval: rr.Interval,
		Feedback: rr.Feedback,
		Export:   rr.Export,
	}
}

// RunResult is one entry of a run-all response.
type RunResult struct {
	ID     string                `json:"id"`
	Name   string                `json:"name,omitempty"`
	Result *app.Outcome          `json:"result,omitempty"`
	Error  *response.ErrorDetail `json:"error,omitempty"`
}

// Create validates and saves a strategy.
func (h *StrategyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decode(w, r, &req, false); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.AddStrategy(r.Context(), middleware.Owner(r.Context()), req.Name, req.Source)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, rec)
}

// List returns the caller's strategies.
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.app.ListStrategies(r.Context(), middleware.Owner(r.Context()))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"strategies": recs,
		"count":      len(recs),
	})
}

// Get returns one strategy.
func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.GetStrategy(r.Context(), middleware.Owner(r.Context()), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// Delete removes one strategy.
func (h *StrategyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.app.DeleteStrategy(r.Context(), middleware.Owner(r.Context()), id); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
	})
}

// Run backtests one saved strategy and waits for the result.
func (h *StrategyHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decode(w, r, &req, true); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	out, err := h.app.RunStrategy(r.Context(), middleware.Owner(r.Context()), r.PathValue("id"), req.request())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

// RunAll backtests every strategy of the caller against one series.
func (h *StrategyHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decode(w, r, &req, true); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	results, err := h.app.RunOwner(r.Context(), middleware.Owner(r.Context()), req.request())
	if err != nil {
		response.Fail(w, err)
		return
	}

	out := make([]RunResult, len(results))
	failed := 0
	for i, res := range results {
		out[i] = RunResult{ID: res.Strategy.ID, Name: res.Strategy.Name, Result: res.Outcome}
		if res.Err != nil {
			d := response.Detail(res.Err)
			out[i].Error = &d
			failed++
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"results": out,
		"count":   len(out),
		"failed":  failed,
	})
}

// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/api/job"
	"github.com/newthinker/strategylab/internal/api/response"
	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/core"
)

const (
	backtestTimeout = 5 * time.Minute
	jobTypeBacktest = "backtest"
)

// BacktestApp defines the interface needed from app.App.
type BacktestApp interface {
	Backtest(ctx context.Context, req app.Request) (*app.Outcome, error)
}

// JobGauge receives the number of unfinished jobs per type.
type JobGauge interface {
	SetJobsActive(jobType string, count int)
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	app      BacktestApp
	gauge    JobGauge
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. gauge may be nil.
func NewBacktestHandler(jobStore *job.Store, app BacktestApp, gauge JobGauge, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore: jobStore,
		app:      app,
		gauge:    gauge,
		logger:   logger,
	}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.Request
	if err := decode(w, r, &req, false); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrSourceUnreadable, errors.New("source is empty")))
		return
	}

	j := h.jobStore.Create(jobTypeBacktest)
	h.reportActive()

	go h.runBacktest(j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, req app.Request) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})
	defer h.reportActive()

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	out, err := h.app.Backtest(ctx, req)

	if err != nil {
		h.logger.Info("backtest job failed",
			zap.String("job_id", jobID),
			zap.String("code", core.Code(err)),
			zap.Error(err),
		)
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = out
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *BacktestHandler) reportActive() {
	if h.gauge != nil {
		h.gauge.SetJobsActive(jobTypeBacktest, h.jobStore.Active(jobTypeBacktest))
	}
}

// asCoreError keeps structured errors. Anything else is reported under the
// internal code without its text; the job log has the detail.
func asCoreError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return &core.Error{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

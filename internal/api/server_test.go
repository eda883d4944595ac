// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/api/middleware"
	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/collector"
	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
)

type stubProvider struct{}

func (stubProvider) Name() string                    { return "yahoo" }
func (stubProvider) Init(cfg collector.Config) error { return nil }
func (stubProvider) FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 110, 121}
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{Symbol: symbol, Open: c, High: c, Low: c, Close: c, Volume: 1, Time: base.AddDate(0, 0, i)}
	}
	return bars, nil
}

const holdSource = `df["position"] = 1
df["returns"] = df["close"].pct_change().fillna(0)
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Archive.Path = t.TempDir()

	a, err := app.New(cfg, zap.NewNop(), app.WithProvider(stubProvider{}))
	if err != nil {
		t.Fatalf("creating app: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	srv, err := NewServer(Config{Host: "localhost", Port: 0, JobTTL: time.Hour}, Dependencies{
		Backtests:  a,
		Strategies: a,
		Metrics:    a.Metrics(),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func do(srv *Server, method, path, owner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	w := do(srv, "GET", "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestServer_RequiresServices(t *testing.T) {
	if _, err := NewServer(Config{}, Dependencies{}, nil); err == nil {
		t.Error("expected error without services")
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t)
	do(srv, "GET", "/api/health", "", "")

	w := do(srv, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "strategylab_http_requests_total") {
		t.Error("expected strategylab_http_requests_total in metrics output")
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Metrics.Enabled = false
	a, err := app.New(cfg, nil, app.WithProvider(stubProvider{}))
	if err != nil {
		t.Fatalf("creating app: %v", err)
	}
	defer a.Close()

	srv, _ := NewServer(Config{}, Dependencies{Backtests: a, Strategies: a, Metrics: a.Metrics()}, nil)
	if w := do(srv, "GET", "/metrics", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestServer_BacktestJob(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"symbol": "BTC-USD", "source": holdSource})
	w := do(srv, "POST", "/api/v1/backtests", "", string(body))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	var status struct {
		Data struct {
			Status string `json:"status"`
			Result struct {
				Report struct {
					FinalEquity float64 `json:"final_equity"`
				} `json:"report"`
			} `json:"result"`
		} `json:"data"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w = do(srv, "GET", "/api/v1/backtests/"+created.Data.JobID, "", "")
		json.Unmarshal(w.Body.Bytes(), &status)
		if status.Data.Status == "complete" || status.Data.Status == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Data.Status != "complete" {
		t.Fatalf("expected complete, got %q: %s", status.Data.Status, w.Body.String())
	}
	if status.Data.Result.Report.FinalEquity != 1210 {
		t.Errorf("expected final equity 1210, got %v", status.Data.Result.Report.FinalEquity)
	}
}

func TestServer_StrategyFlow(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"name": "hold", "source": holdSource})
	w := do(srv, "POST", "/api/v1/strategies", "alice", string(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data core.StrategyRecord `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	id := created.Data.ID

	if w := do(srv, "GET", "/api/v1/strategies/"+id, "bob", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another owner, got %d", w.Code)
	}

	w = do(srv, "POST", "/api/v1/strategies/"+id+"/run", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(srv, "POST", "/api/v1/strategies/run", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := do(srv, "DELETE", "/api/v1/strategies/"+id, "alice", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/strategies", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without owner, got %d", w.Code)
	}
}

// internal/api/handler/api/strategies_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/strategylab/internal/api/middleware"
	"github.com/newthinker/strategylab/internal/api/response"
	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/backtest"
	"github.com/newthinker/strategylab/internal/core"
)

type mockStrategyApp struct {
	recs    map[string]core.StrategyRecord
	lastReq app.Request
}

func newMockStrategyApp() *mockStrategyApp {
	return &mockStrategyApp{recs: map[string]core.StrategyRecord{
		"s1": {ID: "s1", Owner: "alice", Name: "sma", Source: "df[\"position\"] = 1"},
		"s2": {ID: "s2", Owner: "alice", Name: "broken", Source: "fail(\"x\")"},
		"s3": {ID: "s3", Owner: "bob", Name: "other", Source: "x = 1"},
	}}
}

func (m *mockStrategyApp) AddStrategy(ctx context.Context, owner, name, source string) (*core.StrategyRecord, error) {
	if source == "" {
		return nil, core.WrapError(core.ErrSourceUnreadable, nil)
	}
	if source == "def (" {
		return nil, core.WrapError(core.ErrPluginSyntax, nil)
	}
	rec := core.StrategyRecord{ID: "new", Owner: owner, Name: name, Source: source}
	m.recs[rec.ID] = rec
	return &rec, nil
}

func (m *mockStrategyApp) ListStrategies(ctx context.Context, owner string) ([]core.StrategyRecord, error) {
	var out []core.StrategyRecord
	for _, id := range []string{"s1", "s2", "s3", "new"} {
		if rec, ok := m.recs[id]; ok && rec.Owner == owner {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockStrategyApp) GetStrategy(ctx context.Context, owner, id string) (*core.StrategyRecord, error) {
	rec, ok := m.recs[id]
	if !ok || rec.Owner != owner {
		return nil, core.WrapError(core.ErrRecordNotFound, nil)
	}
	return &rec, nil
}

func (m *mockStrategyApp) DeleteStrategy(ctx context.Context, owner, id string) error {
	if _, err := m.GetStrategy(ctx, owner, id); err != nil {
		return err
	}
	delete(m.recs, id)
	return nil
}

func (m *mockStrategyApp) RunStrategy(ctx context.Context, owner, id string, req app.Request) (*app.Outcome, error) {
	if _, err := m.GetStrategy(ctx, owner, id); err != nil {
		return nil, err
	}
	m.lastReq = req
	return &app.Outcome{Report: backtest.Report{Symbol: req.Symbol, FinalEquity: 1100}, Feedback: "ok"}, nil
}

func (m *mockStrategyApp) RunOwner(ctx context.Context, owner string, req app.Request) ([]app.OwnerResult, error) {
	recs, _ := m.ListStrategies(ctx, owner)
	out := make([]app.OwnerResult, len(recs))
	for i, rec := range recs {
		out[i].Strategy = rec
		if rec.Name == "broken" {
			out[i].Err = core.WrapError(core.ErrPluginRuntime, nil)
			continue
		}
		out[i].Outcome = &app.Outcome{Report: backtest.Report{FinalEquity: 1000}}
	}
	return out, nil
}

// serve routes a request the way the server does, owner check included.
func serve(h *StrategyHandler, method, path, owner, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/strategies", h.Create)
	mux.HandleFunc("GET /api/v1/strategies", h.List)
	mux.HandleFunc("POST /api/v1/strategies/run", h.RunAll)
	mux.HandleFunc("GET /api/v1/strategies/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/strategies/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/strategies/{id}/run", h.Run)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	middleware.RequireOwner(mux).ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	return resp.Error.Code
}

func TestStrategyHandler_Create(t *testing.T) {
	m := newMockStrategyApp()
	h := NewStrategyHandler(m)

	w := serve(h, "POST", "/api/v1/strategies", "carol", `{"name": "mine", "source": "df[\"position\"] = 0"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if m.recs["new"].Owner != "carol" {
		t.Errorf("expected owner from header, got %q", m.recs["new"].Owner)
	}
}

func TestStrategyHandler_Create_Rejects(t *testing.T) {
	h := NewStrategyHandler(newMockStrategyApp())

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"syntax", `{"name": "x", "source": "def ("}`, http.StatusUnprocessableEntity, "PLUGIN_SYNTAX_ERROR"},
		{"empty", `{"name": "x"}`, http.StatusBadRequest, "SOURCE_UNREADABLE"},
		{"bad json", `nope`, http.StatusBadRequest, "CONFIG_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, "POST", "/api/v1/strategies", "alice", tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if code := errorCode(t, w); code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, code)
			}
		})
	}
}

func TestStrategyHandler_RequiresOwner(t *testing.T) {
	w := serve(NewStrategyHandler(newMockStrategyApp()), "GET", "/api/v1/strategies", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestStrategyHandler_List(t *testing.T) {
	w := serve(NewStrategyHandler(newMockStrategyApp()), "GET", "/api/v1/strategies", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data struct {
			Strategies []core.StrategyRecord `json:"strategies"`
			Count      int                   `json:"count"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Count != 2 || len(resp.Data.Strategies) != 2 {
		t.Errorf("expected 2 strategies, got %+v", resp.Data)
	}
}

func TestStrategyHandler_GetAndDelete(t *testing.T) {
	m := newMockStrategyApp()
	h := NewStrategyHandler(m)

	if w := serve(h, "GET", "/api/v1/strategies/s1", "alice", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	// Another owner's record is indistinguishable from a missing one.
	if w := serve(h, "GET", "/api/v1/strategies/s3", "alice", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	if w := serve(h, "DELETE", "/api/v1/strategies/s1", "alice", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if _, ok := m.recs["s1"]; ok {
		t.Error("expected s1 to be deleted")
	}
	w := serve(h, "DELETE", "/api/v1/strategies/s1", "alice", "")
	if w.Code != http.StatusNotFound || errorCode(t, w) != "RECORD_NOT_FOUND" {
		t.Errorf("expected RECORD_NOT_FOUND, got %d %s", w.Code, w.Body.String())
	}
}

func TestStrategyHandler_Run(t *testing.T) {
	m := newMockStrategyApp()
	h := NewStrategyHandler(m)

	w := serve(h, "POST", "/api/v1/strategies/s1/run", "alice", `{"symbol": "AAPL", "feedback": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if m.lastReq.Symbol != "AAPL" || !m.lastReq.Feedback {
		t.Errorf("request not passed through: %+v", m.lastReq)
	}

	var resp struct {
		Data struct {
			Report   backtest.Report `json:"report"`
			Feedback string          `json:"feedback"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Report.FinalEquity != 1100 || resp.Data.Feedback != "ok" {
		t.Errorf("unexpected result %+v", resp.Data)
	}
}

func TestStrategyHandler_Run_EmptyBody(t *testing.T) {
	m := newMockStrategyApp()
	w := serve(NewStrategyHandler(m), "POST", "/api/v1/strategies/s1/run", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if m.lastReq != (app.Request{}) {
		t.Errorf("expected zero request, got %+v", m.lastReq)
	}
}

func TestStrategyHandler_RunAll(t *testing.T) {
	w := serve(NewStrategyHandler(newMockStrategyApp()), "POST", "/api/v1/strategies/run", "alice", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Results []RunResult `json:"results"`
			Count   int         `json:"count"`
			Failed  int         `json:"failed"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Count != 2 || resp.Data.Failed != 1 {
		t.Fatalf("expected 2 results with 1 failure, got %+v", resp.Data)
	}
	broken := resp.Data.Results[1]
	if broken.Error == nil || broken.Error.Code != "PLUGIN_RUNTIME_ERROR" || broken.Result != nil {
		t.Errorf("unexpected failed entry %+v", broken)
	}
}

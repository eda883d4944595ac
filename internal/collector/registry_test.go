package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/strategylab/internal/core"
)

// mockProvider for testing
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string          { return m.name }
func (m *mockProvider) Init(cfg Config) error { return nil }
func (m *mockProvider) FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockProvider{name: "mock"}
	r.Register(mock)

	p, ok := r.Get("mock")
	if !ok {
		t.Fatal("expected to find registered provider")
	}

	if p.Name() != "mock" {
		t.Errorf("expected name 'mock', got '%s'", p.Name())
	}
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "a"})
	r.Register(&mockProvider{name: "b"})

	all := r.GetAll()
	if len(all) != 2 {
		t.Errorf("expected 2 providers, got %d", len(all))
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "yahoo"})
	r.Register(&mockProvider{name: "alpaca"})

	if _, err := r.Lookup("yahoo"); err != nil {
		t.Fatalf("Lookup(yahoo) error = %v", err)
	}

	_, err := r.Lookup("bloomberg")
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("Lookup(bloomberg) error = %v, want CONFIG_INVALID", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "alpaca" || names[1] != "yahoo" {
		t.Errorf("Names() = %v, want sorted [alpaca yahoo]", names)
	}
}

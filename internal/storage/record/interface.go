// internal/storage/record/interface.go
package record

import (
	"context"
	"fmt"

	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
)

// Store defines the interface for strategy record persistence.
type Store interface {
	// Save inserts rec, assigning ID and timestamps when unset, or replaces
	// the record with the same ID.
	Save(ctx context.Context, rec *core.StrategyRecord) error

	// Get retrieves a record by its ID.
	Get(ctx context.Context, id string) (*core.StrategyRecord, error)

	// List retrieves records matching the filter, oldest first.
	List(ctx context.Context, filter ListFilter) ([]core.StrategyRecord, error)

	// SetFeedback replaces the stored feedback text.
	SetFeedback(ctx context.Context, id, feedback string) error

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	Close() error
}

// ListFilter defines criteria for listing records.
type ListFilter struct {
	Owner  string
	Limit  int
	Offset int
}

// New opens the backend named by cfg.Type. An empty type is memory.
func New(cfg config.RecordsConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown record store type: %s", cfg.Type))
	}
}

func notFound(id string) error {
	return core.WrapError(core.ErrRecordNotFound, fmt.Errorf("id %s", id))
}

// page applies offset and limit to n items and returns the bounds.
func page(n int, filter ListFilter) (int, int) {
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return start, end
}

// internal/storage/record/memory.go
package record

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/strategylab/internal/core"
)

// MemoryStore is an in-memory record store.
type MemoryStore struct {
	records []core.StrategyRecord
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Save adds or replaces a record.
func (m *MemoryStore) Save(ctx context.Context, rec *core.StrategyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	for i := range m.records {
		if m.records[i].ID == rec.ID {
			rec.CreatedAt = m.records[i].CreatedAt
			m.records[i] = *rec
			return nil
		}
	}
	m.records = append(m.records, *rec)
	return nil
}

// Get retrieves a record by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*core.StrategyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.index(id); i >= 0 {
		rec := m.records[i]
		return &rec, nil
	}
	return nil, notFound(id)
}

// List returns records matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.StrategyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []core.StrategyRecord{}
	for _, rec := range m.records {
		if filter.Owner == "" || rec.Owner == filter.Owner {
			result = append(result, rec)
		}
	}

	start, end := page(len(result), filter)
	return result[start:end], nil
}

// SetFeedback updates a record's feedback.
func (m *MemoryStore) SetFeedback(ctx context.Context, id, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return notFound(id)
	}
	m.records[i].Feedback = feedback
	m.records[i].UpdatedAt = m.now().UTC()
	return nil
}

// Delete removes a record.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return notFound(id)
	}
	m.records = append(m.records[:i], m.records[i+1:]...)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) index(id string) int {
	for i := range m.records {
		if m.records[i].ID == id {
			return i
		}
	}
	return -1
}

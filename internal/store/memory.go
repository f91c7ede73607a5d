package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store, used by tests and the CLI dry runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record

	// Error injection
	GetError    error
	PutError    error
	DeleteError error
	ListError   error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Get(ctx context.Context, name string) (*Record, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (m *Memory) Put(ctx context.Context, rec Record) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Name]; ok {
		return ErrExists
	}
	m.records[rec.Name] = *cloneRecord(rec)
	return nil
}

func (m *Memory) Delete(ctx context.Context, name string) (*Record, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return nil, nil
	}
	delete(m.records, name)
	return &rec, nil
}

func (m *Memory) List(ctx context.Context) ([]Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *cloneRecord(rec))
	}
	SortByName(out)
	return out, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Close() error { return nil }

// SortByName orders records by name, the iteration order every Store guarantees.
func SortByName(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int {
		return strings.Compare(a.Name, b.Name)
	})
}

func cloneRecord(rec Record) *Record {
	rec.Embedding = slices.Clone(rec.Embedding)
	return &rec
}

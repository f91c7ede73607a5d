// Package store defines the key-value persistence used by each matching pipeline.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrExists is returned by Put when the name is already registered.
var ErrExists = errors.New("name already registered")

// Record is one registered identity, keyed by Name.
type Record struct {
	ID        string
	Name      string
	Embedding []float64 // embedding pipeline only
	ImagePath string    // reference JPEG
	CreatedAt time.Time
}

// Store persists records of a single pipeline keyed by name.
type Store interface {
	// Get retrieves a record by name, returns nil if not found
	Get(ctx context.Context, name string) (*Record, error)
	// Put inserts a new record; fails with ErrExists if the name is taken
	Put(ctx context.Context, rec Record) error
	// Delete removes a record and returns it, nil if it did not exist
	Delete(ctx context.Context, name string) (*Record, error)
	// List returns all records ordered by name
	List(ctx context.Context) ([]Record, error)
	// Count returns the number of records
	Count(ctx context.Context) (int, error)
	// Close releases the underlying resources
	Close() error
}

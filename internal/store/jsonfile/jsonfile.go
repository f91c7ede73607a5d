// Package jsonfile stores pipeline records in a single JSON document keyed by name.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-registry/internal/store"
)

// timestampLayouts are accepted when reading; the first one is used for writing.
// The zone-less layouts cover files written by the numpy-based service.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// fileRecord is the on-disk shape of one entry: {"<name>": {"encoding": [...], "timestamp": "..."}}.
type fileRecord struct {
	ID        string    `json:"id,omitempty"`
	Encoding  []float64 `json:"encoding,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// Store is a store.Store backed by one JSON file. Every mutation rewrites
// the whole file atomically while holding the store mutex.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*Store)(nil)

// Open prepares a JSON file store at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	s := &Store{path: path}
	// Fail early on a corrupt file instead of on the first request.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]fileRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	records := map[string]fileRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return records, nil
}

func (s *Store) save(records map[string]fileRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

func toRecord(name string, fr fileRecord) store.Record {
	rec := store.Record{
		ID:        fr.ID,
		Name:      name,
		Embedding: fr.Encoding,
		ImagePath: fr.ImagePath,
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, fr.Timestamp); err == nil {
			rec.CreatedAt = ts
			break
		}
	}
	return rec
}

func fromRecord(rec store.Record) fileRecord {
	return fileRecord{
		ID:        rec.ID,
		Encoding:  rec.Embedding,
		ImagePath: rec.ImagePath,
		Timestamp: rec.CreatedAt.UTC().Format(timestampLayouts[0]),
	}
}

func (s *Store) Get(ctx context.Context, name string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	fr, ok := records[name]
	if !ok {
		return nil, nil
	}
	rec := toRecord(name, fr)
	return &rec, nil
}

func (s *Store) Put(ctx context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[rec.Name]; ok {
		return store.ErrExists
	}
	records[rec.Name] = fromRecord(rec)
	return s.save(records)
}

func (s *Store) Delete(ctx context.Context, name string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	fr, ok := records[name]
	if !ok {
		return nil, nil
	}
	delete(records, name)
	if err := s.save(records); err != nil {
		return nil, err
	}
	rec := toRecord(name, fr)
	return &rec, nil
}

func (s *Store) List(ctx context.Context) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, 0, len(records))
	for name, fr := range records {
		out = append(out, toRecord(name, fr))
	}
	store.SortByName(out)
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Store) Close() error { return nil }

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/pgvector/pgvector-go"
)

// FaceStore is a store.Store over one pipeline table. The embedding table keeps
// vectors as pgvector float4 values, so embeddings round-trip at float32 precision.
type FaceStore struct {
	pool          *Pool
	table         string
	withEmbedding bool
}

var _ store.Store = (*FaceStore)(nil)

// NewEmbeddingStore returns the store of the embedding pipeline.
func NewEmbeddingStore(pool *Pool) *FaceStore {
	return &FaceStore{pool: pool, table: "embedding_faces", withEmbedding: true}
}

// NewVerificationStore returns the store of the verification pipeline.
func NewVerificationStore(pool *Pool) *FaceStore {
	return &FaceStore{pool: pool, table: "verification_faces"}
}

func (s *FaceStore) columns() string {
	if s.withEmbedding {
		return "name, id, embedding, image_path, created_at"
	}
	return "name, id, image_path, created_at"
}

// scanRecord scans one row selected with s.columns().
func (s *FaceStore) scanRecord(scanner interface{ Scan(...any) error }) (store.Record, error) {
	var rec store.Record
	if !s.withEmbedding {
		err := scanner.Scan(&rec.Name, &rec.ID, &rec.ImagePath, &rec.CreatedAt)
		return rec, err
	}

	var vec pgvector.Vector
	if err := scanner.Scan(&rec.Name, &rec.ID, &vec, &rec.ImagePath, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.Embedding = toFloat64(vec.Slice())
	return rec, nil
}

// Get retrieves a record by name, returns nil if not found.
func (s *FaceStore) Get(ctx context.Context, name string) (*store.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = $1", s.columns(), s.table)

	rec, err := s.scanRecord(s.pool.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &rec, nil
}

// Put inserts a new record, the primary key on name rejects duplicates.
func (s *FaceStore) Put(ctx context.Context, rec store.Record) error {
	var (
		result sql.Result
		err    error
	)
	if s.withEmbedding {
		query := fmt.Sprintf(`
			INSERT INTO %s (name, id, embedding, image_path, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO NOTHING
		`, s.table)
		result, err = s.pool.db.ExecContext(ctx, query,
			rec.Name, rec.ID, pgvector.NewVector(toFloat32(rec.Embedding)), rec.ImagePath, rec.CreatedAt)
	} else {
		query := fmt.Sprintf(`
			INSERT INTO %s (name, id, image_path, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, s.table)
		result, err = s.pool.db.ExecContext(ctx, query, rec.Name, rec.ID, rec.ImagePath, rec.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("insert face: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrExists
	}
	return nil
}

// Delete removes a record and returns it, nil if it did not exist.
func (s *FaceStore) Delete(ctx context.Context, name string) (*store.Record, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = $1 RETURNING %s", s.table, s.columns())

	rec, err := s.scanRecord(s.pool.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete face: %w", err)
	}
	return &rec, nil
}

// List returns all records ordered by name.
func (s *FaceStore) List(ctx context.Context) ([]store.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY name COLLATE \"C\"", s.columns(), s.table)

	rows, err := s.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var recs []store.Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return recs, nil
}

// Count returns the number of records.
func (s *FaceStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// Close is a no-op, the pool is shared by both pipeline stores and closed by its owner.
func (s *FaceStore) Close() error { return nil }

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-registry/internal/store"
)

// FaceStore is a store.Store over one pipeline table.
type FaceStore struct {
	db    *DB
	table string
}

var _ store.Store = (*FaceStore)(nil)

const columns = "name, id, embedding, image_path, created_at"

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func scanRecord(scanner interface{ Scan(...any) error }) (store.Record, error) {
	var (
		rec       store.Record
		embedding string
		created   int64
	)
	if err := scanner.Scan(&rec.Name, &rec.ID, &embedding, &rec.ImagePath, &created); err != nil {
		return rec, err
	}
	if embedding != "" {
		if err := json.Unmarshal([]byte(embedding), &rec.Embedding); err != nil {
			return rec, fmt.Errorf("decode embedding of %s: %w", rec.Name, err)
		}
	}
	rec.CreatedAt = fromMillis(created)
	return rec, nil
}

func (s *FaceStore) Get(ctx context.Context, name string) (*store.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ?", columns, s.table)

	rec, err := scanRecord(s.db.sqlDB.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &rec, nil
}

func (s *FaceStore) Put(ctx context.Context, rec store.Record) error {
	var embedding string
	if len(rec.Embedding) > 0 {
		data, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		embedding = string(data)
	}

	result, err := s.db.sqlDB.ExecContext(ctx, fmt.Sprintf(s.db.dialect.insert, s.table),
		rec.Name, rec.ID, embedding, rec.ImagePath, toMillis(rec.CreatedAt))
	if err != nil {
		if s.db.dialect.isDuplicate != nil && s.db.dialect.isDuplicate(err) {
			return store.ErrExists
		}
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

func (s *FaceStore) Delete(ctx context.Context, name string) (*store.Record, error) {
	tx, err := s.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ?%s", columns, s.table, s.db.dialect.lockForRead)
	rec, err := scanRecord(tx.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE name = ?", s.table), name); err != nil {
		return nil, fmt.Errorf("delete face: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return &rec, nil
}

func (s *FaceStore) List(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.sqlDB.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY name", columns, s.table))
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var recs []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
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

func (s *FaceStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.sqlDB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// Close is a no-op, the DB handle is shared by both pipeline stores.
func (s *FaceStore) Close() error { return nil }

package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "faces.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Error("expected error for blank path")
	}
}

func TestOpenMySQL_InvalidDSN(t *testing.T) {
	if _, err := OpenMySQL(&config.DatabaseConfig{}); err == nil {
		t.Error("expected error for empty DSN")
	}
	if _, err := OpenMySQL(&config.DatabaseConfig{URL: "user:pass@tcp(localhost:3306"}); err == nil {
		t.Error("expected error for malformed DSN")
	}
}

func TestFaceStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).EmbeddingStore()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := store.Record{ID: "id-1", Name: "alice", Embedding: []float64{0.125, -0.75, 1}, ImagePath: "a.jpg", CreatedAt: created}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.ID != "id-1" || got.ImagePath != "a.jpg" {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != -0.75 {
		t.Errorf("unexpected embedding %v", got.Embedding)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected %v, got %v", created, got.CreatedAt)
	}
}

func TestFaceStore_GetMissing(t *testing.T) {
	got, err := openTestDB(t).EmbeddingStore().Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestFaceStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).EmbeddingStore()

	s.Put(ctx, store.Record{ID: "1", Name: "alice", Embedding: []float64{1}})
	err := s.Put(ctx, store.Record{ID: "2", Name: "alice", Embedding: []float64{2}})
	if !errors.Is(err, store.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, _ := s.Get(ctx, "alice")
	if got.ID != "1" {
		t.Errorf("expected original record, got %+v", got)
	}
}

func TestFaceStore_PipelinesIndependent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	emb := db.EmbeddingStore()
	ver := db.VerificationStore()

	if err := emb.Put(ctx, store.Record{ID: "1", Name: "alice", Embedding: []float64{1}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := ver.Put(ctx, store.Record{ID: "2", Name: "alice", ImagePath: "v/alice.jpg"}); err != nil {
		t.Fatalf("expected same name to be accepted by the other pipeline, got %v", err)
	}

	got, _ := ver.Get(ctx, "alice")
	if got.Embedding != nil {
		t.Errorf("expected no embedding in verification store, got %v", got.Embedding)
	}
}

func TestFaceStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).VerificationStore()
	for _, name := range []string{"carol", "Bob", "alice"} {
		s.Put(ctx, store.Record{ID: name, Name: name})
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Bob", "alice", "carol"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i := range want {
		if recs[i].Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], recs[i].Name)
		}
	}

	removed, err := s.Delete(ctx, "carol")
	if err != nil || removed == nil {
		t.Fatalf("expected removal, got %+v, %v", removed, err)
	}
	removed, err = s.Delete(ctx, "carol")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != nil {
		t.Errorf("expected nil on second delete, got %+v", removed)
	}

	n, _ := s.Count(ctx)
	if n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
}

func TestMySQLDialect_PlainInsert(t *testing.T) {
	if strings.Contains(strings.ToUpper(mysqlDialect.insert), "IGNORE") {
		t.Errorf("mysql insert = %q, must not use IGNORE", mysqlDialect.insert)
	}
	if mysqlDialect.isDuplicate == nil {
		t.Fatal("mysql dialect has no duplicate check")
	}
}

func TestIsMySQLDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice'"}, true},
		{"wrapped duplicate", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1062}), true},
		{"data too long", &mysql.MySQLError{Number: 1406, Message: "Data too long for column 'name'"}, false},
		{"other error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMySQLDuplicate(tt.err); got != tt.want {
				t.Errorf("isMySQLDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// A dialect that reports duplicates as insert errors must map them to
// store.ErrExists and surface every other insert error.
func TestFaceStore_PutDuplicateFromInsertError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	db.dialect.insert = "INSERT INTO %s (name, id, embedding, image_path, created_at) VALUES (?, ?, ?, ?, ?)"
	db.dialect.isDuplicate = func(err error) bool {
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
	s := db.EmbeddingStore()

	rec := store.Record{Name: "alice", ID: "1", Embedding: []float64{0.1}, CreatedAt: time.Now()}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, rec); !errors.Is(err, store.ErrExists) {
		t.Fatalf("second Put() error = %v, want ErrExists", err)
	}

	broken := &FaceStore{db: db, table: "missing_table"}
	err := broken.Put(ctx, store.Record{Name: "bob", ID: "2", CreatedAt: time.Now()})
	if err == nil || errors.Is(err, store.ErrExists) {
		t.Errorf("Put() on missing table error = %v, want a non-duplicate error", err)
	}
}

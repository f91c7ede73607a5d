// Package sqlstore keeps pipeline records in SQLite or MySQL/MariaDB.
// Embeddings are stored as JSON text and timestamps as Unix milliseconds.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-registry/internal/config"
	_ "modernc.org/sqlite"
)

// dialect captures the few statements that differ between the drivers.
type dialect struct {
	driver      string
	createTable string // %s is the table name
	insert      string // %s is the table name
	lockForRead string
	// isDuplicate reports a primary key violation of insert, if the
	// dialect surfaces one as an error.
	isDuplicate func(error) bool
}

var sqliteDialect = dialect{
	driver: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS %s (
		name       TEXT PRIMARY KEY,
		id         TEXT NOT NULL,
		embedding  TEXT NOT NULL DEFAULT '',
		image_path TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	insert: "INSERT OR IGNORE INTO %s (name, id, embedding, image_path, created_at) VALUES (?, ?, ?, ?, ?)",
}

var mysqlDialect = dialect{
	driver: "mysql",
	createTable: `CREATE TABLE IF NOT EXISTS %s (
		name       VARCHAR(255) NOT NULL PRIMARY KEY,
		id         CHAR(36) NOT NULL,
		embedding  MEDIUMTEXT NOT NULL,
		image_path VARCHAR(1024) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin`,
	// Plain INSERT: IGNORE would also downgrade "data too long" to a warning
	// and store a truncated name.
	insert:      "INSERT INTO %s (name, id, embedding, image_path, created_at) VALUES (?, ?, ?, ?, ?)",
	lockForRead: " FOR UPDATE",
	isDuplicate: isMySQLDuplicate,
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isMySQLDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

var tables = []string{embeddingTable, verificationTable}

const (
	embeddingTable    = "embedding_faces"
	verificationTable = "verification_faces"
)

// DB is a shared handle for both pipeline stores.
type DB struct {
	sqlDB   *sql.DB
	dialect dialect
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the two pipeline stores.
	sqlDB.SetMaxOpenConns(1)
	return open(sqlDB, sqliteDialect)
}

// OpenMySQL connects to MySQL or MariaDB using a go-sql-driver DSN.
func OpenMySQL(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("MySQL DSN is required")
	}
	mc, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse MySQL DSN: %w", err)
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("create MySQL connector: %w", err)
	}

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return open(sqlDB, mysqlDialect)
}

func open(sqlDB *sql.DB, d dialect) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.driver, err)
	}
	db := &DB{sqlDB: sqlDB, dialect: d}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	for _, table := range tables {
		if _, err := db.sqlDB.ExecContext(ctx, fmt.Sprintf(db.dialect.createTable, table)); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

// EmbeddingStore returns the store of the embedding pipeline.
func (db *DB) EmbeddingStore() *FaceStore {
	return &FaceStore{db: db, table: embeddingTable}
}

// VerificationStore returns the store of the verification pipeline.
func (db *DB) VerificationStore() *FaceStore {
	return &FaceStore{db: db, table: verificationTable}
}

// Close closes the SQL handle.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}
	if err := db.sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

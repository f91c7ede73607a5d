package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one embedded schema step, identified by its file name.
type migration struct {
	version    string
	statements string
}

// loadMigrations reads every .sql file under dir, ordered by version.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), statements: string(content)})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// pendingMigrations filters out versions already recorded in the schema table.
func pendingMigrations(all []migration, applied []string) []migration {
	var out []migration
	for _, m := range all {
		if !slices.Contains(applied, m.version) {
			out = append(out, m)
		}
	}
	return out
}

// appliedVersions returns recorded schema versions, oldest first.
func (p *Pool) appliedVersions(ctx context.Context) ([]string, error) {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// Migrate brings the face tables up to date. Each migration runs in its
// own transaction together with its schema_migrations row. It returns the
// versions applied by this call.
func (p *Pool) Migrate(ctx context.Context) ([]string, error) {
	all, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	applied, err := p.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	pending := pendingMigrations(all, applied)
	if len(pending) == 0 {
		p.logger.Debug().Strs("versions", applied).Msg("face schema up to date")
		return nil, nil
	}

	var done []string
	for _, m := range pending {
		if err := p.apply(ctx, m); err != nil {
			return done, err
		}
		p.logger.Info().Str("version", m.version).Msg("applied face schema migration")
		done = append(done, m.version)
	}
	return done, nil
}

func (p *Pool) apply(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.statements); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return nil
}

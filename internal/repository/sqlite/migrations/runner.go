package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"

	"github.com/jmoiron/sqlx"
)

// Run applies every migration in FS that is not yet recorded in
// schema_migrations. Each file runs in its own transaction.
func Run(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, "SELECT filename FROM schema_migrations ORDER BY filename"); err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	pending, err := Pending(applied)
	if err != nil {
		return fmt.Errorf("list migration files: %w", err)
	}

	for _, filename := range pending {
		if err := apply(ctx, db, filename); err != nil {
			return fmt.Errorf("apply migration %s: %w", filename, err)
		}
		slog.Info("migration applied", "file", filename)
	}
	return nil
}

// Pending returns the embedded migration files missing from applied, sorted.
func Pending(applied []string) ([]string, error) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(files)

	var pending []string
	for _, f := range files {
		if slices.Contains(applied, path.Base(f)) {
			slog.Debug("migration already applied", "file", f)
			continue
		}
		pending = append(pending, f)
	}
	return pending, nil
}

func apply(ctx context.Context, db *sqlx.DB, filename string) error {
	content, err := fs.ReadFile(FS, filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", filename); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// Migrate creates the category tables and the profile table. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, c := range simplepublish.Categories() {
		if err := createContentTable(ctx, db, c.Table()); err != nil {
			return fmt.Errorf("migrate %s: %w", c.Table(), err)
		}
	}
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profile (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			avatar_key TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate profile: %w", err)
	}
	return nil
}

func createContentTable(ctx context.Context, db *sql.DB, tableName string) error {
	quoted := quoteIdentifier(tableName)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			author TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			cover_key TEXT,
			pdf_key TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, quoted),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at DESC, id DESC)`,
			quoteIdentifier("idx_"+tableName+"_created_at"), quoted),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create content table: %w", err)
		}
	}
	return nil
}

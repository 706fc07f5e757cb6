package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Migrate creates the category tables and the profile table. It is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	for _, c := range simplepublish.Categories() {
		if err := createContentTable(ctx, db, c.Table()); err != nil {
			return fmt.Errorf("migrate %s: %w", c.Table(), err)
		}
	}
	if err := createProfileTable(ctx, db); err != nil {
		return fmt.Errorf("migrate profile: %w", err)
	}
	return nil
}

func createContentTable(ctx context.Context, db DBTX, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexCreatedAt := pgx.Identifier{fmt.Sprintf("idx_%s_created_at", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			author TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			cover_key TEXT,
			pdf_key TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s ON %s (created_at DESC, id DESC);
	`, quotedTable, indexCreatedAt, quotedTable)

	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create content table: %w", err)
	}
	return nil
}

func createProfileTable(ctx context.Context, db DBTX) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profile (
			id BIGINT PRIMARY KEY CHECK (id = 1),
			avatar_key TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create profile table: %w", err)
	}
	return nil
}

// DropTables removes every table Migrate creates.
func DropTables(ctx context.Context, db DBTX) error {
	tables := []string{"profile"}
	for _, c := range simplepublish.Categories() {
		tables = append(tables, c.Table())
	}
	for _, t := range tables {
		if _, err := db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{t}.Sanitize())); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}

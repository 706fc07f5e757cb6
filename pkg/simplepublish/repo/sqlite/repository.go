// Package sqlite implements simplepublish.Store on SQLite through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// timeFormat sorts lexically in chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Repository implements simplepublish.Store using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dsn. An in-memory database is pinned to a
// single connection so every query sees the same data.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	return db, nil
}

// New creates a new SQLite repository
func New(db *sql.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const itemColumns = `id, title, slug, author, genre, summary, content,
	COALESCE(cover_key, ''), COALESCE(pdf_key, ''), created_at, updated_at`

func (r *Repository) handleSQLiteError(operation string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return simplepublish.ErrNotFound
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")) {
			return fmt.Errorf("%w: %s: duplicate slug", simplepublish.ErrConflict, operation)
		}
	}
	return fmt.Errorf("%w: %s: %w", simplepublish.ErrRepository, operation, err)
}

func table(category simplepublish.Category) (string, error) {
	if !category.IsValid() {
		return "", simplepublish.Validationf("invalid category %q", category)
	}
	return quoteIdentifier(category.Table()), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner, category simplepublish.Category) (*simplepublish.ContentItem, error) {
	item := simplepublish.ContentItem{Category: category}
	var createdAt, updatedAt string
	err := row.Scan(&item.ID, &item.Title, &item.Slug, &item.Author, &item.Genre,
		&item.Summary, &item.Content, &item.CoverKey, &item.PDFKey, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if item.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &item, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Content operations

func (r *Repository) Create(ctx context.Context, item *simplepublish.ContentItem) error {
	tbl, err := table(item.Category)
	if err != nil {
		return err
	}
	now := r.now()
	stamp := now.Format(timeFormat)
	query := fmt.Sprintf( //nolint:gosec // G201: table name comes from the closed category set
		`INSERT INTO %s (title, slug, author, genre, summary, content, cover_key, pdf_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, tbl)

	res, err := r.db.ExecContext(ctx, query,
		item.Title, item.Slug, item.Author, item.Genre, item.Summary, item.Content,
		nullIfEmpty(item.CoverKey), nullIfEmpty(item.PDFKey), stamp, stamp)
	if err != nil {
		return r.handleSQLiteError("create content", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return r.handleSQLiteError("create content", err)
	}

	item.ID = id
	item.CreatedAt, _ = time.Parse(timeFormat, stamp)
	item.UpdatedAt = item.CreatedAt
	return nil
}

func (r *Repository) FindByID(ctx context.Context, category simplepublish.Category, id int64) (*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, itemColumns, tbl) //nolint:gosec // closed table set
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id), category)
	if err != nil {
		return nil, r.handleSQLiteError("find content by id", err)
	}
	return item, nil
}

func (r *Repository) FindBySlug(ctx context.Context, category simplepublish.Category, slug string) (*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = ?`, itemColumns, tbl) //nolint:gosec // closed table set
	item, err := scanItem(r.db.QueryRowContext(ctx, query, slug), category)
	if err != nil {
		return nil, r.handleSQLiteError("find content by slug", err)
	}
	return item, nil
}

func (r *Repository) SlugExists(ctx context.Context, category simplepublish.Category, slug string) (bool, error) {
	tbl, err := table(category)
	if err != nil {
		return false, err
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = ?)`, tbl) //nolint:gosec // closed table set
	if err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists); err != nil {
		return false, r.handleSQLiteError("check slug", err)
	}
	return exists, nil
}

func (r *Repository) Update(ctx context.Context, category simplepublish.Category, id int64, patch simplepublish.ContentPatch) (*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{r.now().Format(timeFormat)}
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}
	if patch.Genre != nil {
		add("genre", *patch.Genre)
	}
	if patch.Summary != nil {
		add("summary", *patch.Summary)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.CoverKey != nil {
		add("cover_key", nullIfEmpty(*patch.CoverKey))
	}
	if patch.PDFKey != nil {
		add("pdf_key", nullIfEmpty(*patch.PDFKey))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, tbl, strings.Join(sets, ", ")) //nolint:gosec // closed table set
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, r.handleSQLiteError("update content", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, r.handleSQLiteError("update content", err)
	} else if n == 0 {
		return nil, simplepublish.ErrNotFound
	}
	return r.FindByID(ctx, category, id)
}

func (r *Repository) Delete(ctx context.Context, category simplepublish.Category, id int64) error {
	tbl, err := table(category)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tbl), id) //nolint:gosec // closed table set
	if err != nil {
		return r.handleSQLiteError("delete content", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.handleSQLiteError("delete content", err)
	}
	if n == 0 {
		return simplepublish.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, category simplepublish.Category, opts simplepublish.ListOptions) ([]*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}

	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	query := fmt.Sprintf( //nolint:gosec // closed table set
		`SELECT %s FROM %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, itemColumns, tbl)

	rows, err := r.db.QueryContext(ctx, query, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, r.handleSQLiteError("list content", err)
	}
	defer func() { _ = rows.Close() }()

	items := []*simplepublish.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows, category)
		if err != nil {
			return nil, r.handleSQLiteError("list content", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list content", err)
	}
	return items, nil
}

// Profile operations

func (r *Repository) GetProfile(ctx context.Context) (*simplepublish.Profile, error) {
	var p simplepublish.Profile
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(avatar_key, ''), created_at, updated_at FROM profile WHERE id = ?`,
		simplepublish.ProfileID,
	).Scan(&p.ID, &p.AvatarKey, &createdAt, &updatedAt)
	if err != nil {
		return nil, r.handleSQLiteError("get profile", err)
	}
	p.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	p.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &p, nil
}

func (r *Repository) UpsertProfileAvatar(ctx context.Context, avatarKey string) (*simplepublish.Profile, error) {
	now := r.now().Format(timeFormat)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profile (id, avatar_key, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET avatar_key = excluded.avatar_key, updated_at = excluded.updated_at`,
		simplepublish.ProfileID, nullIfEmpty(avatarKey), now, now)
	if err != nil {
		return nil, r.handleSQLiteError("upsert profile avatar", err)
	}
	return r.GetProfile(ctx)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplepublish.Store using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const itemColumns = `id, title, slug, author, genre, summary, content,
	COALESCE(cover_key, ''), COALESCE(pdf_key, ''), created_at, updated_at`

// handlePostgresError maps driver failures onto the simplepublish error kinds
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s: duplicate slug (%s)", simplepublish.ErrConflict, operation, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("%w: %s: table does not exist - database migration required", simplepublish.ErrRepository, operation)
		default:
			return fmt.Errorf("%w: %s: %s (code: %s)", simplepublish.ErrRepository, operation, pgErr.Message, pgErr.Code)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return simplepublish.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", simplepublish.ErrRepository, operation, err)
}

func table(category simplepublish.Category) (string, error) {
	if !category.IsValid() {
		return "", simplepublish.Validationf("invalid category %q", category)
	}
	return pgx.Identifier{category.Table()}.Sanitize(), nil
}

func scanItem(row pgx.Row, category simplepublish.Category) (*simplepublish.ContentItem, error) {
	item := simplepublish.ContentItem{Category: category}
	err := row.Scan(&item.ID, &item.Title, &item.Slug, &item.Author, &item.Genre,
		&item.Summary, &item.Content, &item.CoverKey, &item.PDFKey, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Content operations

func (r *Repository) Create(ctx context.Context, item *simplepublish.ContentItem) error {
	tbl, err := table(item.Category)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (title, slug, author, genre, summary, content, cover_key, pdf_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`, tbl)

	err = r.db.QueryRow(ctx, query,
		item.Title, item.Slug, item.Author, item.Genre, item.Summary, item.Content,
		nullIfEmpty(item.CoverKey), nullIfEmpty(item.PDFKey),
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create content", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, category simplepublish.Category, id int64) (*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, tbl)
	item, err := scanItem(r.db.QueryRow(ctx, query, id), category)
	if err != nil {
		return nil, r.handlePostgresError("find content by id", err)
	}
	return item, nil
}

func (r *Repository) FindBySlug(ctx context.Context, category simplepublish.Category, slug string) (*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = $1`, itemColumns, tbl)
	item, err := scanItem(r.db.QueryRow(ctx, query, slug), category)
	if err != nil {
		return nil, r.handlePostgresError("find content by slug", err)
	}
	return item, nil
}

func (r *Repository) SlugExists(ctx context.Context, category simplepublish.Category, slug string) (bool, error) {
	tbl, err := table(category)
	if err != nil {
		return false, err
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = $1)`, tbl)
	if err := r.db.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, r.handlePostgresError("check slug", err)
	}
	return exists, nil
}

func (r *Repository) Update(ctx context.Context, category simplepublish.Category, id int64, patch simplepublish.ContentPatch) (*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
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

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 RETURNING %s`,
		tbl, strings.Join(sets, ", "), itemColumns)
	item, err := scanItem(r.db.QueryRow(ctx, query, args...), category)
	if err != nil {
		return nil, r.handlePostgresError("update content", err)
	}
	return item, nil
}

func (r *Repository) Delete(ctx context.Context, category simplepublish.Category, id int64) error {
	tbl, err := table(category)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tbl), id)
	if err != nil {
		return r.handlePostgresError("delete content", err)
	}
	if tag.RowsAffected() == 0 {
		return simplepublish.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, category simplepublish.Category, opts simplepublish.ListOptions) ([]*simplepublish.ContentItem, error) {
	tbl, err := table(category)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id DESC`, itemColumns, tbl)
	var args []any
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	defer rows.Close()

	items := []*simplepublish.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows, category)
		if err != nil {
			return nil, r.handlePostgresError("list content", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	return items, nil
}

// Profile operations

func (r *Repository) GetProfile(ctx context.Context) (*simplepublish.Profile, error) {
	var p simplepublish.Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(avatar_key, ''), created_at, updated_at FROM profile WHERE id = $1`,
		simplepublish.ProfileID,
	).Scan(&p.ID, &p.AvatarKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, r.handlePostgresError("get profile", err)
	}
	return &p, nil
}

func (r *Repository) UpsertProfileAvatar(ctx context.Context, avatarKey string) (*simplepublish.Profile, error) {
	var p simplepublish.Profile
	err := r.db.QueryRow(ctx, `
		INSERT INTO profile (id, avatar_key) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET avatar_key = EXCLUDED.avatar_key, updated_at = NOW()
		RETURNING id, COALESCE(avatar_key, ''), created_at, updated_at`,
		simplepublish.ProfileID, nullIfEmpty(avatarKey),
	).Scan(&p.ID, &p.AvatarKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, r.handlePostgresError("upsert profile avatar", err)
	}
	return &p, nil
}

package posts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/favum/favum/internal/platform/db"
	"github.com/favum/favum/internal/platform/httpx"
)

// Repository defines persistence operations for the posts module.
type Repository interface {
	Get(ctx context.Context, id int64) (*Post, error)
	OwnerOf(ctx context.Context, id int64) (int64, error)
	Create(ctx context.Context, authorID int64, title, body string) (*Post, error)
	Update(ctx context.Context, id int64, title, body string) (*Post, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page, perPage int) ([]Post, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get fetches a post by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Post, error) {
	const query = `
		SELECT id, author_id, title, body, created_at, updated_at
		FROM posts
		WHERE id = $1`
	var p Post
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// OwnerOf returns the author of a post without loading the full row. This
// is the lookup the ownership guard is wired with.
func (r *PGRepository) OwnerOf(ctx context.Context, id int64) (int64, error) {
	const query = `SELECT author_id FROM posts WHERE id = $1`
	var authorID int64
	if err := r.pool.QueryRow(ctx, query, id).Scan(&authorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, httpx.ErrNotFound
		}
		return 0, err
	}
	return authorID, nil
}

// Create inserts a new post.
func (r *PGRepository) Create(ctx context.Context, authorID int64, title, body string) (*Post, error) {
	const query = `
		INSERT INTO posts (author_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, author_id, title, body, created_at, updated_at`
	now := time.Now().UTC()
	var p Post
	err := r.pool.QueryRow(ctx, query, authorID, title, body, now).Scan(
		&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update rewrites a post's title and body.
func (r *PGRepository) Update(ctx context.Context, id int64, title, body string) (*Post, error) {
	const query = `
		UPDATE posts
		SET title = $2, body = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, author_id, title, body, created_at, updated_at`
	var p Post
	err := r.pool.QueryRow(ctx, query, id, title, body, time.Now().UTC()).Scan(
		&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Delete removes a post and its comments atomically.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}

// List returns a page of posts ordered newest first, plus the total count.
func (r *PGRepository) List(ctx context.Context, page, perPage int) ([]Post, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT id, author_id, title, body, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

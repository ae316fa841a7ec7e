package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// PgHostRepository reads the host mirror tables (content, comments, users).
type PgHostRepository interface {
	ContentRepository
	UserRepository
}

type pgHostRepository struct {
	pool *pgxpool.Pool
}

// NewPgHostRepository returns content and user lookups backed by PostgreSQL.
func NewPgHostRepository(pool *pgxpool.Pool) PgHostRepository {
	return &pgHostRepository{pool: pool}
}

func (r *pgHostRepository) GetContent(ctx context.Context, id int64) (*domain.Content, error) {
	var c domain.Content
	err := r.pool.QueryRow(ctx, `
		SELECT id, type, title, status, author_id, parent_id, last_editor_id, permalink, modified_at
		FROM content_items WHERE id = $1`, id).Scan(
		&c.ID, &c.Type, &c.Title, &c.Status, &c.AuthorID, &c.ParentID,
		&c.LastEditorID, &c.Permalink, &c.ModifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get content")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT taxonomy, slug FROM content_terms
		WHERE content_id = $1 ORDER BY taxonomy, slug`, id)
	if err != nil {
		return nil, errors.Wrap(err, "get content terms")
	}
	defer rows.Close()

	c.Terms = make(map[string][]string)
	for rows.Next() {
		var taxonomy, slug string
		if err := rows.Scan(&taxonomy, &slug); err != nil {
			return nil, errors.Wrap(err, "scan content term")
		}
		c.Terms[taxonomy] = append(c.Terms[taxonomy], slug)
	}
	return &c, rows.Err()
}

func (r *pgHostRepository) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	var c domain.Comment
	err := r.pool.QueryRow(ctx, `
		SELECT id, content_id, author_id, body, created_at
		FROM editorial_comments WHERE id = $1`, id).Scan(
		&c.ID, &c.ContentID, &c.AuthorID, &c.Body, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get comment")
	}
	return &c, nil
}

func (r *pgHostRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.login, u.email, u.display_name,
		       COALESCE(ARRAY_AGG(g.group_name ORDER BY g.group_name) FILTER (WHERE g.group_name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_groups g ON g.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id`, id).Scan(&u.ID, &u.Login, &u.Email, &u.DisplayName, &u.Groups)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (r *pgHostRepository) GroupMembers(ctx context.Context, group string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM user_groups WHERE group_name = $1 ORDER BY user_id`, group)
	if err != nil {
		return nil, errors.Wrap(err, "get group members")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan group member")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

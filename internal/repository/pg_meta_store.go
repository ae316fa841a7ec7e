package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgMetaStore struct {
	pool *pgxpool.Pool
}

// NewPgMetaStore returns a MetaStore backed by the entity_meta table.
func NewPgMetaStore(pool *pgxpool.Pool) MetaStore {
	return &pgMetaStore{pool: pool}
}

func (s *pgMetaStore) Get(ctx context.Context, scope MetaScope, id int64, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT meta_value FROM entity_meta
		WHERE scope = $1 AND entity_id = $2 AND meta_key = $3
		ORDER BY position`, scope, id, key)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s meta %q", scope, key)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan meta value")
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *pgMetaStore) Set(ctx context.Context, scope MetaScope, id int64, key string, values ...string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_meta
		WHERE scope = $1 AND entity_id = $2 AND meta_key = $3`, scope, id, key); err != nil {
		return errors.Wrapf(err, "clear %s meta %q", scope, key)
	}
	for pos, v := range values {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entity_meta (scope, entity_id, meta_key, position, meta_value)
			VALUES ($1, $2, $3, $4, $5)`, scope, id, key, pos, v); err != nil {
			return errors.Wrapf(err, "insert %s meta %q", scope, key)
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit meta")
}

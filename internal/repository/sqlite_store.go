package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// SQLiteStore keeps workflows and entity metadata in SQLite. It serves
// single-node deployments where running PostgreSQL is not worth it.
//
// It expects an *sql.DB that uses a SQLite driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ WorkflowRepository = (*SQLiteStore)(nil)
	_ WorkflowWriter     = (*SQLiteStore)(nil)
	_ MetaStore          = (*SQLiteStore)(nil)
)

// NewSQLiteStore initializes the schema in db and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, errors.Wrap(err, "init sqlite schema")
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			type TEXT NOT NULL DEFAULT 'notification_workflow',
			modified_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS entity_meta (
			scope TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			meta_key TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			meta_value TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (scope, entity_id, meta_key, position)
		);
		CREATE INDEX IF NOT EXISTS idx_entity_meta_key_value ON entity_meta (scope, meta_key, meta_value);`,
	)
	return err
}

func (s *SQLiteStore) Query(ctx context.Context, cond query.Condition) ([]*domain.Workflow, error) {
	where, args, err := query.Compile(cond, query.SQLite, query.DefaultSchema)
	if err != nil {
		return nil, errors.Wrap(err, "compile workflow query")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.title, w.status, w.type, w.modified_at
		FROM workflows w
		WHERE `+where+`
		ORDER BY w.id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query workflows")
	}
	defer rows.Close()

	var workflows []*domain.Workflow
	for rows.Next() {
		wf, err := scanSQLiteWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate workflows")
	}

	if err := s.attachMeta(ctx, workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*domain.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, type, modified_at FROM workflows WHERE id = ?`, id)
	wf, err := scanSQLiteWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachMeta(ctx, []*domain.Workflow{wf}); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *SQLiteStore) SaveWorkflow(ctx context.Context, wf *domain.Workflow) error {
	if wf.ID <= 0 {
		return domain.ErrInvalidWorkflowID
	}
	wfType := wf.Type
	if wfType == "" {
		wfType = domain.WorkflowType
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, title, status, type, modified_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET title = excluded.title, status = excluded.status,
		    type = excluded.type, modified_at = excluded.modified_at`,
		wf.ID, wf.Title, wf.Status, wfType, time.Now().UTC().Unix())
	if err != nil {
		return errors.Wrap(err, "upsert workflow")
	}
	if err := replaceMeta(ctx, tx, ScopeWorkflow, wf.ID, nil, wf.Meta); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit workflow")
}

func (s *SQLiteStore) Get(ctx context.Context, scope MetaScope, id int64, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT meta_value FROM entity_meta
		WHERE scope = ? AND entity_id = ? AND meta_key = ?
		ORDER BY position`, string(scope), id, key)
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

func (s *SQLiteStore) Set(ctx context.Context, scope MetaScope, id int64, key string, values ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	keys := []string{key}
	if err := replaceMeta(ctx, tx, scope, id, keys, map[string][]string{key: values}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit meta")
}

// replaceMeta deletes the given keys (every key when keys is nil) of an
// entity and inserts meta in their place.
func replaceMeta(ctx context.Context, tx *sql.Tx, scope MetaScope, id int64, keys []string, meta map[string][]string) error {
	if keys == nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_meta WHERE scope = ? AND entity_id = ?`, string(scope), id); err != nil {
			return errors.Wrap(err, "clear meta")
		}
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_meta WHERE scope = ? AND entity_id = ? AND meta_key = ?`, string(scope), id, k); err != nil {
			return errors.Wrapf(err, "clear meta %q", k)
		}
	}
	for k, values := range meta {
		for pos, v := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO entity_meta (scope, entity_id, meta_key, position, meta_value)
				VALUES (?, ?, ?, ?, ?)`, string(scope), id, k, pos, v); err != nil {
				return errors.Wrapf(err, "insert meta %q", k)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) attachMeta(ctx context.Context, workflows []*domain.Workflow) error {
	if len(workflows) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Workflow, len(workflows))
	args := []any{string(ScopeWorkflow)}
	marks := make([]string, len(workflows))
	for i, wf := range workflows {
		byID[wf.ID] = wf
		args = append(args, wf.ID)
		marks[i] = "?"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, meta_key, meta_value FROM entity_meta
		WHERE scope = ? AND entity_id IN (`+strings.Join(marks, ", ")+`)
		ORDER BY entity_id, meta_key, position`, args...)
	if err != nil {
		return errors.Wrap(err, "load workflow meta")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var key, value string
		if err := rows.Scan(&id, &key, &value); err != nil {
			return errors.Wrap(err, "scan workflow meta")
		}
		if wf, ok := byID[id]; ok {
			wf.Meta[key] = append(wf.Meta[key], value)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate workflow meta")
	}
	for _, wf := range workflows {
		wf.Decode()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteWorkflow(row rowScanner) (*domain.Workflow, error) {
	wf := &domain.Workflow{Meta: make(map[string][]string)}
	var modified int64
	if err := row.Scan(&wf.ID, &wf.Title, &wf.Status, &wf.Type, &modified); err != nil {
		return nil, err
	}
	wf.ModifiedAt = time.Unix(modified, 0).UTC()
	return wf, nil
}

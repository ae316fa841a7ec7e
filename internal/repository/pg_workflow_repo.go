package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

type pgWorkflowRepository struct {
	pool *pgxpool.Pool
}

// PgWorkflowRepository is the PostgreSQL workflow repository. It also
// writes workflows so the seed loader can populate an empty database.
type PgWorkflowRepository interface {
	WorkflowRepository
	WorkflowWriter
}

// NewPgWorkflowRepository returns a workflow repository backed by PostgreSQL.
// Conditions are compiled to SQL so filtering happens in the database.
func NewPgWorkflowRepository(pool *pgxpool.Pool) PgWorkflowRepository {
	return &pgWorkflowRepository{pool: pool}
}

func (r *pgWorkflowRepository) Query(ctx context.Context, cond query.Condition) ([]*domain.Workflow, error) {
	where, args, err := query.Compile(cond, query.Postgres, query.DefaultSchema)
	if err != nil {
		return nil, errors.Wrap(err, "compile workflow query")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT w.id, w.title, w.status, w.type, w.modified_at
		FROM workflows w
		WHERE `+where+`
		ORDER BY w.id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query workflows")
	}
	defer rows.Close()

	workflows, err := scanWorkflows(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachMeta(ctx, workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (r *pgWorkflowRepository) GetByID(ctx context.Context, id int64) (*domain.Workflow, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, status, type, modified_at
		FROM workflows WHERE id = $1`, id)

	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get workflow")
	}
	if err := r.attachMeta(ctx, []*domain.Workflow{wf}); err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *pgWorkflowRepository) SaveWorkflow(ctx context.Context, wf *domain.Workflow) error {
	if wf.ID <= 0 {
		return domain.ErrInvalidWorkflowID
	}
	wfType := wf.Type
	if wfType == "" {
		wfType = domain.WorkflowType
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO workflows (id, title, status, type, modified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, status = EXCLUDED.status,
		    type = EXCLUDED.type, modified_at = EXCLUDED.modified_at`,
		wf.ID, wf.Title, wf.Status, wfType, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "upsert workflow")
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM entity_meta WHERE scope = $1 AND entity_id = $2`, ScopeWorkflow, wf.ID); err != nil {
		return errors.Wrap(err, "clear workflow meta")
	}
	for key, values := range wf.Meta {
		for pos, v := range values {
			if _, err := tx.Exec(ctx, `
				INSERT INTO entity_meta (scope, entity_id, meta_key, position, meta_value)
				VALUES ($1, $2, $3, $4, $5)`, ScopeWorkflow, wf.ID, key, pos, v); err != nil {
				return errors.Wrapf(err, "insert workflow meta %q", key)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit workflow")
	}
	return nil
}

// attachMeta loads the metadata of every workflow in one round trip and
// decodes the typed configuration.
func (r *pgWorkflowRepository) attachMeta(ctx context.Context, workflows []*domain.Workflow) error {
	if len(workflows) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Workflow, len(workflows))
	ids := make([]int64, len(workflows))
	for i, wf := range workflows {
		ids[i] = wf.ID
		byID[wf.ID] = wf
	}

	rows, err := r.pool.Query(ctx, `
		SELECT entity_id, meta_key, meta_value
		FROM entity_meta
		WHERE scope = $1 AND entity_id = ANY($2)
		ORDER BY entity_id, meta_key, position`, ScopeWorkflow, ids)
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

// ---- helpers ----

func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	wf := &domain.Workflow{Meta: make(map[string][]string)}
	if err := row.Scan(&wf.ID, &wf.Title, &wf.Status, &wf.Type, &wf.ModifiedAt); err != nil {
		return nil, err
	}
	return wf, nil
}

func scanWorkflows(rows pgx.Rows) ([]*domain.Workflow, error) {
	var result []*domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan workflow")
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

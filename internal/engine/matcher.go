package engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// MatchCondition builds the condition tree for ec: published workflows of the
// workflow type, ANDed with every event and filter step contribution.
func (e *Engine) MatchCondition(ctx context.Context, ec *domain.EventContext) (query.Condition, error) {
	cond := query.And{
		query.FieldEquals{Field: domain.FieldStatus, Value: domain.StatusPublish},
		query.FieldEquals{Field: domain.FieldType, Value: domain.WorkflowType},
	}
	for _, ev := range e.steps.Events() {
		conds, err := ev.QueryConditions(ctx, ec)
		if err != nil {
			return nil, errors.Wrapf(err, "event step %s", ev.Name())
		}
		cond = append(cond, conds...)
	}
	for _, f := range e.steps.Filters() {
		conds, err := f.QueryConditions(ctx, ec)
		if err != nil {
			return nil, errors.Wrapf(err, "filter step %s", f.Name())
		}
		cond = append(cond, conds...)
	}
	return cond, nil
}

// FindMatchingWorkflows returns the workflows that fire for ec, ordered by ID.
func (e *Engine) FindMatchingWorkflows(ctx context.Context, ec *domain.EventContext) ([]*domain.Workflow, error) {
	cond, err := e.MatchCondition(ctx, ec)
	if err != nil {
		return nil, err
	}
	workflows, err := e.workflows.Query(ctx, cond)
	if err != nil {
		return nil, errors.Wrap(err, "query workflows")
	}
	return workflows, nil
}

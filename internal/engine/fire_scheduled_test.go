package engine_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
)

func scheduledJob(t *testing.T, f *fixture) domain.ScheduledNotification {
	t.Helper()
	wf, err := f.store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	return domain.ScheduledNotification{
		ID:          "job-1",
		WorkflowID:  1,
		Args:        publishEvent,
		Fingerprint: wf.Fingerprint(),
	}
}

func TestFireScheduled_DeliversWithStoredArgs(t *testing.T) {
	f := newFixture(t, engine.Options{})
	f.saveWorkflow(t, 1, publishWorkflowMeta())
	job := scheduledJob(t, f)

	report, err := f.engine.FireScheduled(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Workflows)
	assert.Equal(t, 1, report.Count(domain.OutcomeSent))
	assert.Equal(t, 1, f.email.count())
	assert.Len(t, f.recorder.outcomes, 1)
}

func TestFireScheduled_BypassesRunner(t *testing.T) {
	f := newFixture(t, engine.Options{})
	f.saveWorkflow(t, 1, publishWorkflowMeta())
	f.engine.SetRunner(engine.RunnerFunc(func(context.Context, *domain.Workflow, *domain.EventContext) ([]domain.Outcome, error) {
		t.Fatal("scheduled jobs must not be deferred again")
		return nil, nil
	}))

	_, err := f.engine.FireScheduled(context.Background(), scheduledJob(t, f))
	require.NoError(t, err)
	assert.Equal(t, 1, f.email.count())
}

func TestFireScheduled_LatestPolicyUsesCurrentConfig(t *testing.T) {
	f := newFixture(t, engine.Options{Policy: engine.PolicyLatest})
	f.saveWorkflow(t, 1, publishWorkflowMeta())
	job := scheduledJob(t, f)

	meta := publishWorkflowMeta()
	meta[domain.MetaContentSubject] = []string{"Changed subject"}
	f.saveWorkflow(t, 1, meta)

	_, err := f.engine.FireScheduled(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 1, f.email.count())
	assert.Equal(t, "Changed subject", f.email.sent[0].Message.Subject)
}

func TestFireScheduled_AbortIfChanged(t *testing.T) {
	cases := map[string]func(t *testing.T, f *fixture){
		"config changed": func(t *testing.T, f *fixture) {
			meta := publishWorkflowMeta()
			meta[domain.MetaContentSubject] = []string{"Changed subject"}
			f.saveWorkflow(t, 1, meta)
		},
		"unpublished": func(t *testing.T, f *fixture) {
			require.NoError(t, f.store.SaveWorkflow(context.Background(), &domain.Workflow{
				ID: 1, Title: "Published", Status: "draft", Meta: publishWorkflowMeta(),
			}))
		},
		"deleted": func(_ *testing.T, f *fixture) {
			f.store.DeleteWorkflow(1)
		},
	}
	for name, change := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, engine.Options{Policy: engine.PolicyAbortIfChanged})
			f.saveWorkflow(t, 1, publishWorkflowMeta())
			job := scheduledJob(t, f)
			change(t, f)

			_, err := f.engine.FireScheduled(context.Background(), job)
			assert.True(t, errors.Is(err, domain.ErrWorkflowChanged), "got %v", err)
			assert.Zero(t, f.email.count())
		})
	}
}

func TestFireScheduled_AbortIfChangedFiresUnchangedWorkflow(t *testing.T) {
	f := newFixture(t, engine.Options{Policy: engine.PolicyAbortIfChanged})
	f.saveWorkflow(t, 1, publishWorkflowMeta())

	_, err := f.engine.FireScheduled(context.Background(), scheduledJob(t, f))
	require.NoError(t, err)
	assert.Equal(t, 1, f.email.count())
}

func TestFireScheduled_DeletedWorkflowUnderLatestPolicy(t *testing.T) {
	f := newFixture(t, engine.Options{})
	f.saveWorkflow(t, 1, publishWorkflowMeta())
	job := scheduledJob(t, f)
	f.store.DeleteWorkflow(1)

	_, err := f.engine.FireScheduled(context.Background(), job)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

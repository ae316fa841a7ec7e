// Package engine turns content-lifecycle events into delivered notifications.
//
// For every event it finds the published workflows whose event and filter
// steps match, then for each of them resolves receivers, renders the message
// and hands it to the channel steps. Nothing in here returns an error to the
// host that fired the event: failures are logged and reported in the Report.
package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/repository"
	"github.com/notifyhub/editorial-notify/internal/step"
)

// ActionRunner decides what happens to a matched workflow: deliver right now
// or defer. The returned outcomes are reported to the action steps.
type ActionRunner interface {
	Run(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.Outcome, error)
}

// RunnerFunc adapts a function to ActionRunner.
type RunnerFunc func(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.Outcome, error)

func (f RunnerFunc) Run(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.Outcome, error) {
	return f(ctx, wf, ec)
}

// ScheduledPolicy decides what to do when a scheduled notification fires
// after its workflow was changed.
type ScheduledPolicy string

const (
	// PolicyLatest fires with whatever the workflow looks like now.
	PolicyLatest ScheduledPolicy = "latest"
	// PolicyAbortIfChanged drops the job when the workflow's fingerprint
	// differs from the one recorded at scheduling time, or when the workflow
	// is gone or no longer published.
	PolicyAbortIfChanged ScheduledPolicy = "abort_if_changed"
)

func (p ScheduledPolicy) Valid() bool {
	return p == PolicyLatest || p == PolicyAbortIfChanged
}

// Deps are the collaborators the engine reads from.
type Deps struct {
	Workflows repository.WorkflowRepository
	Meta      repository.MetaStore
	Content   repository.ContentRepository
	Users     repository.UserRepository
	Steps     *step.Registry
}

// Options are the engine's policy values.
type Options struct {
	DefaultChannel string
	Site           domain.Site
	Policy         ScheduledPolicy
}

type Engine struct {
	workflows repository.WorkflowRepository
	meta      repository.MetaStore
	content   repository.ContentRepository
	users     repository.UserRepository
	steps     *step.Registry
	runner    ActionRunner

	defaultChannel string
	site           domain.Site
	policy         ScheduledPolicy
	logger         *zap.Logger
	now            func() time.Time
}

func New(d Deps, opts Options, logger *zap.Logger) *Engine {
	if opts.DefaultChannel == "" {
		opts.DefaultChannel = domain.ChannelEmail
	}
	if !opts.Policy.Valid() {
		opts.Policy = PolicyLatest
	}
	e := &Engine{
		workflows:      d.Workflows,
		meta:           d.Meta,
		content:        d.Content,
		users:          d.Users,
		steps:          d.Steps,
		defaultChannel: opts.DefaultChannel,
		site:           opts.Site,
		policy:         opts.Policy,
		logger:         logger,
		now:            time.Now,
	}
	e.runner = RunnerFunc(e.Fire)
	return e
}

// SetRunner replaces the run-action seam. Passing nil restores immediate
// delivery.
func (e *Engine) SetRunner(r ActionRunner) {
	if r == nil {
		r = RunnerFunc(e.Fire)
	}
	e.runner = r
}

// Steps returns the step registry the engine iterates.
func (e *Engine) Steps() *step.Registry { return e.steps }

// Report summarises one OnEvent or FireScheduled call.
type Report struct {
	Event     domain.EventKind `json:"event"`
	Workflows []int64          `json:"workflows"`
	Outcomes  []domain.Outcome `json:"-"`
	// Err is the failure that aborted the whole firing, if any. Failures of
	// single workflows or deliveries are logged and show up in Outcomes.
	Err error `json:"-"`
}

// Count returns the number of outcomes of the given kind.
func (r Report) Count(kind domain.OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// OnEvent is the engine's entry point. It never panics and never returns an
// error to the caller; Report.Err carries the reason a firing was aborted.
//
// Signatures are tracked in the DispatchContext carried by ctx. When ctx has
// none, a fresh one is used for this call only.
func (e *Engine) OnEvent(ctx context.Context, args domain.EventArgs) (report Report) {
	report.Event = args.Kind
	logger := e.logger.With(zap.String("event", string(args.Kind)))

	defer func() {
		if r := recover(); r != nil {
			report.Err = errors.Newf("panic while handling event: %v", r)
			logger.Error("event handling panicked", zap.Error(report.Err))
		}
	}()

	if err := args.Validate(); err != nil {
		report.Err = err
		logger.Warn("invalid event", zap.Error(err))
		return report
	}
	if !e.handlesKind(args.Kind) {
		// No step restricts the query, so every published workflow is a candidate.
		logger.Warn("no event step handles this kind, matching without event restriction")
	}

	ctx, _ = ensureDispatchContext(ctx)

	ec, err := e.LoadEventContext(ctx, args)
	if err != nil {
		report.Err = err
		logger.Error("load event context failed", zap.String("stage", "load"), zap.Error(err))
		return report
	}

	workflows, err := e.FindMatchingWorkflows(ctx, ec)
	if err != nil {
		report.Err = err
		logger.Error("workflow query failed", zap.String("stage", "query"), zap.Error(err))
		return report
	}

	for _, wf := range workflows {
		report.Workflows = append(report.Workflows, wf.ID)
		outcomes, err := e.runner.Run(ctx, wf, ec)
		if err != nil {
			logger.Error("workflow firing failed",
				zap.Int64("workflow_id", wf.ID),
				zap.String("stage", "run"),
				zap.Error(err),
			)
		}
		e.observe(ctx, outcomes)
		report.Outcomes = append(report.Outcomes, outcomes...)
	}
	return report
}

// FireScheduled runs a deferred notification with its stored event args.
// The workflow is reloaded, so it fires with its current configuration
// unless the engine's policy is PolicyAbortIfChanged.
func (e *Engine) FireScheduled(ctx context.Context, job domain.ScheduledNotification) (report Report, err error) {
	report.Event = job.Args.Kind
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic while firing scheduled notification: %v", r)
			report.Err = err
		}
	}()

	wf, err := e.workflows.GetByID(ctx, job.WorkflowID)
	if errors.Is(err, domain.ErrNotFound) && e.policy == PolicyAbortIfChanged {
		return report, errors.Wrapf(domain.ErrWorkflowChanged, "workflow %d was deleted", job.WorkflowID)
	}
	if err != nil {
		return report, errors.Wrapf(err, "load workflow %d", job.WorkflowID)
	}
	if e.policy == PolicyAbortIfChanged {
		if wf.Status != domain.StatusPublish {
			return report, errors.Wrapf(domain.ErrWorkflowChanged, "workflow %d is %s", wf.ID, wf.Status)
		}
		if job.Fingerprint != "" && wf.Fingerprint() != job.Fingerprint {
			return report, errors.Wrapf(domain.ErrWorkflowChanged, "workflow %d", wf.ID)
		}
	}

	ctx, _ = ensureDispatchContext(ctx)
	ec, err := e.LoadEventContext(ctx, job.Args)
	if err != nil {
		return report, err
	}

	report.Workflows = []int64{wf.ID}
	outcomes, err := e.Fire(ctx, wf, ec)
	e.observe(ctx, outcomes)
	report.Outcomes = outcomes
	report.Err = err
	return report, err
}

// LoadEventContext loads the host entities referenced by args. Entities the
// host cannot find are left nil.
func (e *Engine) LoadEventContext(ctx context.Context, args domain.EventArgs) (*domain.EventContext, error) {
	ec := &domain.EventContext{Args: args}
	p := args.Params

	if p.PostID > 0 {
		c, err := e.content.GetContent(ctx, p.PostID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrapf(err, "load content %d", p.PostID)
		}
		ec.Content = c
	}
	if p.CommentID > 0 {
		c, err := e.content.GetComment(ctx, p.CommentID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrapf(err, "load comment %d", p.CommentID)
		}
		ec.Comment = c
	}
	if p.ActorID > 0 {
		u, err := e.users.GetUser(ctx, p.ActorID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrapf(err, "load actor %d", p.ActorID)
		}
		ec.Actor = u
	}
	return ec, nil
}

// Fire delivers one matched workflow immediately. It is the default
// ActionRunner.
func (e *Engine) Fire(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.Outcome, error) {
	logger := e.logger.With(zap.Int64("workflow_id", wf.ID), zap.String("event", string(ec.Args.Kind)))
	if wf.ConfigErr != nil {
		logger.Warn("workflow configuration has invalid values", zap.Error(wf.ConfigErr))
	}

	set, err := e.ResolveReceivers(ctx, wf, ec)
	if err != nil {
		// Partial results are still delivered.
		logger.Warn("some receivers could not be resolved", zap.Error(err))
	}
	if set.Len() == 0 {
		return nil, nil
	}

	msg, err := e.RenderContent(ctx, wf, ec)
	if err != nil {
		return nil, err
	}
	return e.Deliver(ctx, wf, ec, set, msg), nil
}

func (e *Engine) handlesKind(kind domain.EventKind) bool {
	for _, ev := range e.steps.Events() {
		if ev.Handles(kind) {
			return true
		}
	}
	return false
}

func (e *Engine) observe(ctx context.Context, outcomes []domain.Outcome) {
	actions := e.steps.Actions()
	for _, o := range outcomes {
		for _, a := range actions {
			a.OnOutcome(ctx, o)
		}
	}
}

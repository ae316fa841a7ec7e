// Package scheduler defers workflow firings.
//
// A deferred firing is keyed by (rounded run time, workflow ID, event args)
// so that a burst of identical triggers inside one rounding window collapses
// into a single job. Backends make the "store unless the key exists" step
// atomic, which is what absorbs races between processes.
package scheduler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// HookFireWorkflow is the hook name jobs created by the Adapter carry.
const HookFireWorkflow = "editorial_notify.fire_workflow"

// Backend stores deferred jobs.
type Backend interface {
	// ScheduleAt stores job unless a job with the same Key is pending and
	// reports whether it was stored.
	ScheduleAt(ctx context.Context, job domain.ScheduledNotification) (bool, error)
	// Scheduled lists the pending jobs of hook ordered by run time.
	Scheduled(ctx context.Context, hook string) ([]domain.ScheduledNotification, error)
	// ClaimDue removes and returns up to limit jobs due at now. A job is
	// handed to exactly one caller.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error)
}

// TimestampFilter may move the computed run time of a job or veto it by
// returning false.
type TimestampFilter func(runAt time.Time, wf *domain.Workflow, args domain.EventArgs) (time.Time, bool)

// Config holds the scheduling policy values.
type Config struct {
	Delay time.Duration
	Round time.Duration
}

// Adapter schedules workflow firings on a Backend. It implements the
// engine's run-action seam, so plugging it in turns immediate delivery into
// deferred delivery.
type Adapter struct {
	backend     Backend
	delay       time.Duration
	round       time.Duration
	now         func() time.Time
	filter      TimestampFilter
	onScheduled func(job domain.ScheduledNotification)
	logger      *zap.Logger
}

type Option func(*Adapter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithTimestampFilter installs a filter consulted before every job is stored.
func WithTimestampFilter(f TimestampFilter) Option {
	return func(a *Adapter) { a.filter = f }
}

// WithOnScheduled registers a callback run after a job was stored.
func WithOnScheduled(fn func(job domain.ScheduledNotification)) Option {
	return func(a *Adapter) { a.onScheduled = fn }
}

func NewAdapter(backend Backend, cfg Config, logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		delay:   cfg.Delay,
		round:   cfg.Round,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunAt returns the rounded run time for a trigger happening now.
func (a *Adapter) RunAt() time.Time {
	return Round(a.now().Add(a.delay), a.round)
}

// Round floors t to a multiple of factor counted from the Unix epoch, at
// second precision. A factor under one second only drops sub-second parts.
func Round(t time.Time, factor time.Duration) time.Time {
	ts := t.Unix()
	if f := int64(factor / time.Second); f > 1 {
		ts -= ts % f
	}
	return time.Unix(ts, 0).UTC()
}

// Key is the duplicate-suppression key of a job.
func Key(runAt time.Time, workflowID int64, args domain.EventArgs) (string, error) {
	payload, err := args.Canonical()
	if err != nil {
		return "", err
	}
	h := sha1.New()
	h.Write([]byte(strconv.FormatInt(runAt.Unix(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(workflowID, 10)))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ScheduleNotification defers the firing of wf for args. It returns the job
// and true when a new job was stored. A job already pending under the same
// key and a vetoed run time both return false with no error.
func (a *Adapter) ScheduleNotification(ctx context.Context, wf *domain.Workflow, args domain.EventArgs) (domain.ScheduledNotification, bool, error) {
	runAt := a.RunAt()
	if a.filter != nil {
		var ok bool
		if runAt, ok = a.filter(runAt, wf, args); !ok {
			a.logger.Warn("scheduled time rejected by filter, notification not scheduled",
				zap.Int64("workflow_id", wf.ID),
				zap.String("event", string(args.Kind)),
			)
			return domain.ScheduledNotification{}, false, nil
		}
	}

	key, err := Key(runAt, wf.ID, args)
	if err != nil {
		return domain.ScheduledNotification{}, false, err
	}
	job := domain.ScheduledNotification{
		ID:          uuid.New().String(),
		Hook:        HookFireWorkflow,
		Key:         key,
		WorkflowID:  wf.ID,
		Args:        args,
		RunAt:       runAt,
		Fingerprint: wf.Fingerprint(),
		CreatedAt:   a.now().UTC(),
	}

	stored, err := a.backend.ScheduleAt(ctx, job)
	if err != nil {
		return domain.ScheduledNotification{}, false, errors.Wrapf(err, "schedule workflow %d", wf.ID)
	}
	if !stored {
		a.logger.Debug("notification already scheduled",
			zap.Int64("workflow_id", wf.ID),
			zap.Time("run_at", runAt),
		)
		return job, false, nil
	}
	if a.onScheduled != nil {
		a.onScheduled(job)
	}
	return job, true, nil
}

// Run schedules wf instead of delivering it. It satisfies the engine's
// ActionRunner interface.
func (a *Adapter) Run(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.Outcome, error) {
	job, stored, err := a.ScheduleNotification(ctx, wf, ec.Args)
	if err != nil || !stored {
		return nil, err
	}
	return []domain.Outcome{{
		Kind:       domain.OutcomeScheduled,
		WorkflowID: wf.ID,
		Event:      ec.Args.Kind,
		Signature:  job.Key,
	}}, nil
}

// Scheduled lists the pending jobs created by the Adapter.
func (a *Adapter) Scheduled(ctx context.Context) ([]domain.ScheduledNotification, error) {
	return a.backend.Scheduled(ctx, HookFireWorkflow)
}

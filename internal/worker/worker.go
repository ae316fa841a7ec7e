package worker

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/queue"
)

// Firer runs a claimed scheduled notification. *engine.Engine satisfies it.
type Firer interface {
	FireScheduled(ctx context.Context, job domain.ScheduledNotification) (engine.Report, error)
}

// Job results reported through the onJob hook.
const (
	ResultFired   = "fired"
	ResultAborted = "aborted"
	ResultFailed  = "failed"

	// Put-back outcomes of the scheduler poller.
	ResultRequeued  = "requeued"
	ResultCoalesced = "coalesced"
	ResultLost      = "lost"
)

// Worker is a single goroutine that pulls claimed jobs from the queue and
// fires them. Every job runs with its own DispatchContext.
type Worker struct {
	id     int
	q      *queue.JobQueue
	firer  Firer
	logger *zap.Logger

	// Hooks for metrics, injected by the pool so the worker stays metrics-agnostic.
	onJob        func(result string)
	onQueueDepth func(depth int)
}

// NewWorker constructs a worker. onJob and onQueueDepth are optional (nil = no-op).
func NewWorker(
	id int,
	q *queue.JobQueue,
	firer Firer,
	logger *zap.Logger,
	onJob func(string),
	onQueueDepth func(int),
) *Worker {
	if onJob == nil {
		onJob = func(string) {}
	}
	if onQueueDepth == nil {
		onQueueDepth = func(int) {}
	}
	return &Worker{
		id: id, q: q, firer: firer, logger: logger,
		onJob: onJob, onQueueDepth: onQueueDepth,
	}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.onQueueDepth(w.q.Depth())
		w.Process(ctx, job)
	}
}

// Process fires one job and returns the result reported to the onJob hook.
func (w *Worker) Process(ctx context.Context, job domain.ScheduledNotification) string {
	start := time.Now()
	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.Int64("workflow_id", job.WorkflowID),
		zap.String("event", string(job.Args.Kind)),
	)

	ctx = engine.WithDispatchContext(ctx, engine.NewDispatchContext())
	report, err := w.firer.FireScheduled(ctx, job)

	result := ResultFired
	switch {
	case errors.Is(err, domain.ErrWorkflowChanged):
		result = ResultAborted
		log.Info("scheduled notification dropped", zap.Error(err))
	case err != nil:
		result = ResultFailed
		log.Warn("scheduled notification failed", zap.Error(err))
	default:
		log.Info("scheduled notification fired",
			zap.Int("sent", report.Count(domain.OutcomeSent)),
			zap.Int("failed", report.Count(domain.OutcomeFailed)),
			zap.Duration("latency", time.Since(start)),
		)
	}
	w.onJob(result)
	return result
}

package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/queue"
	"github.com/notifyhub/editorial-notify/internal/scheduler"
)

// SchedulerWorker polls the scheduler backend for notifications whose run
// time has passed and hands them to the worker pool.
//
// It never claims more jobs than the queue can take, so a claimed job is
// always either queued or put back on the backend.
type SchedulerWorker struct {
	backend  scheduler.Backend
	q        *queue.JobQueue
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	onJob    func(result string)
}

func NewSchedulerWorker(
	backend scheduler.Backend,
	q *queue.JobQueue,
	interval time.Duration,
	logger *zap.Logger,
	onJob func(result string),
) *SchedulerWorker {
	if onJob == nil {
		onJob = func(string) {}
	}
	return &SchedulerWorker{
		backend: backend, q: q, interval: interval,
		logger: logger, now: time.Now, onJob: onJob,
	}
}

// Run ticks every interval and enqueues any notifications that are now due.
// Stops cleanly when ctx is cancelled.
func (sw *SchedulerWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("scheduler worker started", zap.Duration("interval", sw.interval))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("scheduler worker stopping")
			return
		case <-ticker.C:
			sw.Poll(ctx)
		}
	}
}

// Poll claims due jobs once. It returns the number of jobs queued.
func (sw *SchedulerWorker) Poll(ctx context.Context) int {
	free := sw.q.Free()
	if free == 0 {
		sw.logger.Debug("job queue full, skipping poll", zap.Int("depth", sw.q.Depth()))
		return 0
	}

	jobs, err := sw.backend.ClaimDue(ctx, sw.now(), free)
	if err != nil {
		sw.logger.Error("scheduler poll error", zap.Error(err))
		// Jobs claimed before the error still need a home.
	}

	queued := 0
	for _, job := range jobs {
		if err := sw.q.Enqueue(job); err != nil {
			sw.logger.Warn("could not enqueue scheduled notification, putting it back",
				zap.String("job_id", job.ID), zap.Error(err))
			stored, err := sw.backend.ScheduleAt(ctx, job)
			if err != nil {
				sw.logger.Error("failed to put back scheduled notification",
					zap.String("job_id", job.ID), zap.Error(err))
				sw.onJob(ResultLost)
				continue
			}
			if !stored {
				// A newer trigger already holds the key and will fire instead.
				sw.logger.Info("scheduled notification coalesced into a pending one",
					zap.String("job_id", job.ID), zap.String("key", job.Key))
				sw.onJob(ResultCoalesced)
				continue
			}
			sw.onJob(ResultRequeued)
			continue
		}
		queued++
	}

	if queued > 0 {
		sw.logger.Info("enqueued due scheduled notifications", zap.Int("count", queued))
	}
	return queued
}

package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/queue"
	"github.com/notifyhub/editorial-notify/internal/scheduler"
	"github.com/notifyhub/editorial-notify/internal/worker"
)

// fakeFirer records the jobs it fires and the DispatchContext each ran in.
type fakeFirer struct {
	mu       sync.Mutex
	fired    []domain.ScheduledNotification
	contexts []*engine.DispatchContext
	err      error
}

func (f *fakeFirer) FireScheduled(ctx context.Context, job domain.ScheduledNotification) (engine.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, job)
	f.contexts = append(f.contexts, engine.DispatchContextFrom(ctx))
	return engine.Report{Event: job.Args.Kind}, f.err
}

func (f *fakeFirer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

func job(id string, runAt time.Time) domain.ScheduledNotification {
	return domain.ScheduledNotification{
		ID:         id,
		Hook:       scheduler.HookFireWorkflow,
		Key:        "key-" + id,
		WorkflowID: 1,
		Args:       domain.EventArgs{Kind: domain.EventStatusTransition, Params: domain.EventParams{PostID: 42}},
		RunAt:      runAt,
	}
}

func TestWorker_ProcessUsesFreshDispatchContext(t *testing.T) {
	firer := &fakeFirer{}
	var results []string
	w := worker.NewWorker(0, queue.New(1), firer, zap.NewNop(), func(r string) { results = append(results, r) }, nil)

	if got := w.Process(context.Background(), job("a", time.Now())); got != worker.ResultFired {
		t.Fatalf("expected %q, got %q", worker.ResultFired, got)
	}
	w.Process(context.Background(), job("b", time.Now()))

	if len(firer.contexts) != 2 || firer.contexts[0] == nil || firer.contexts[1] == nil {
		t.Fatalf("expected a DispatchContext per job, got %v", firer.contexts)
	}
	if firer.contexts[0] == firer.contexts[1] {
		t.Fatal("jobs must not share a DispatchContext")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(results))
	}
}

func TestWorker_ProcessClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"changed", errors.Wrap(domain.ErrWorkflowChanged, "workflow 1"), worker.ResultAborted},
		{"other", errors.New("db down"), worker.ResultFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := worker.NewWorker(0, queue.New(1), &fakeFirer{err: tc.err}, zap.NewNop(), nil, nil)
			if got := w.Process(context.Background(), job("a", time.Now())); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSchedulerWorker_PollQueuesDueJobs(t *testing.T) {
	backend := scheduler.NewMemoryBackend()
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	for _, j := range []domain.ScheduledNotification{job("a", past), job("b", past), job("c", time.Now().Add(time.Hour))} {
		if _, err := backend.ScheduleAt(ctx, j); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	q := queue.New(10)
	sw := worker.NewSchedulerWorker(backend, q, time.Second, zap.NewNop(), nil)

	if n := sw.Poll(ctx); n != 2 {
		t.Fatalf("expected 2 queued, got %d", n)
	}
	if q.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", q.Depth())
	}

	pending, err := backend.Scheduled(ctx, "")
	if err != nil {
		t.Fatalf("scheduled: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "c" {
		t.Fatalf("expected only the future job to remain, got %v", pending)
	}
}

func TestSchedulerWorker_PollRespectsQueueCapacity(t *testing.T) {
	backend := scheduler.NewMemoryBackend()
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := backend.ScheduleAt(ctx, job(id, past)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	q := queue.New(2)
	sw := worker.NewSchedulerWorker(backend, q, time.Second, zap.NewNop(), nil)

	if n := sw.Poll(ctx); n != 2 {
		t.Fatalf("expected 2 queued, got %d", n)
	}
	if n := sw.Poll(ctx); n != 0 {
		t.Fatalf("expected nothing queued while full, got %d", n)
	}

	pending, _ := backend.Scheduled(ctx, "")
	if len(pending) != 1 {
		t.Fatalf("expected 1 job left on the backend, got %d", len(pending))
	}
}

// overclaimingBackend hands out every due job regardless of the limit and
// reports the keys in taken as already scheduled.
type overclaimingBackend struct {
	*scheduler.MemoryBackend
	taken map[string]bool
}

func (b *overclaimingBackend) ClaimDue(ctx context.Context, now time.Time, _ int) ([]domain.ScheduledNotification, error) {
	return b.MemoryBackend.ClaimDue(ctx, now, 0)
}

func (b *overclaimingBackend) ScheduleAt(ctx context.Context, j domain.ScheduledNotification) (bool, error) {
	if b.taken[j.Key] {
		return false, nil
	}
	return b.MemoryBackend.ScheduleAt(ctx, j)
}

func TestSchedulerWorker_PutBackReportsCoalescedJobs(t *testing.T) {
	backend := &overclaimingBackend{MemoryBackend: scheduler.NewMemoryBackend(), taken: map[string]bool{}}
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := backend.ScheduleAt(ctx, job(id, past)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	backend.taken["key-c"] = true

	var results []string
	sw := worker.NewSchedulerWorker(backend, queue.New(1), time.Second, zap.NewNop(), func(r string) {
		results = append(results, r)
	})

	if n := sw.Poll(ctx); n != 1 {
		t.Fatalf("expected 1 queued, got %d", n)
	}
	want := []string{worker.ResultRequeued, worker.ResultCoalesced}
	if len(results) != len(want) || results[0] != want[0] || results[1] != want[1] {
		t.Fatalf("expected results %v, got %v", want, results)
	}

	pending, _ := backend.Scheduled(ctx, "")
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("expected only b back on the backend, got %v", pending)
	}
}

func TestPool_FiresQueuedJobsAndStops(t *testing.T) {
	q := queue.New(10)
	firer := &fakeFirer{}
	var (
		mu      sync.Mutex
		results []string
	)
	pool := worker.NewPool(3, q, firer, zap.NewNop(), worker.MetricHooks{
		OnJob: func(r string) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	if pool.Size() != 3 {
		t.Fatalf("expected 3 workers, got %d", pool.Size())
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := q.Enqueue(job(id, time.Now())); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for firer.count() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	pool.Wait()

	if firer.count() != 4 {
		t.Fatalf("expected 4 jobs fired, got %d", firer.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
}

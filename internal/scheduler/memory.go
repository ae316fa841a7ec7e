package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// MemoryBackend keeps jobs in process. Single-node and test use only.
type MemoryBackend struct {
	mu    sync.Mutex
	byKey map[string]domain.ScheduledNotification
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{byKey: make(map[string]domain.ScheduledNotification)}
}

func (m *MemoryBackend) ScheduleAt(_ context.Context, job domain.ScheduledNotification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[job.Key]; exists {
		return false, nil
	}
	m.byKey[job.Key] = job
	return true, nil
}

func (m *MemoryBackend) Scheduled(_ context.Context, hook string) ([]domain.ScheduledNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScheduledNotification
	for _, job := range m.byKey {
		if hook == "" || job.Hook == hook {
			out = append(out, job)
		}
	}
	sortJobs(out)
	return out, nil
}

func (m *MemoryBackend) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []domain.ScheduledNotification
	for _, job := range m.byKey {
		if !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sortJobs(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, job := range due {
		delete(m.byKey, job.Key)
	}
	return due, nil
}

func sortJobs(jobs []domain.ScheduledNotification) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].RunAt.Equal(jobs[j].RunAt) {
			return jobs[i].RunAt.Before(jobs[j].RunAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}

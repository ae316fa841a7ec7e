package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// MemoryStore is a hand-written, in-memory implementation of every
// repository interface. It backs unit tests and seeded development runs.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[int64]*domain.Workflow
	meta      map[metaKey][]string
	contents  map[int64]*domain.Content
	comments  map[int64]*domain.Comment
	users     map[int64]*domain.User

	// Optional error overrides, set in tests to simulate failure paths.
	QueryErr   error
	GetMetaErr error
}

type metaKey struct {
	scope MetaScope
	id    int64
	key   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[int64]*domain.Workflow),
		meta:      make(map[metaKey][]string),
		contents:  make(map[int64]*domain.Content),
		comments:  make(map[int64]*domain.Comment),
		users:     make(map[int64]*domain.User),
	}
}

var (
	_ WorkflowRepository = (*MemoryStore)(nil)
	_ WorkflowWriter     = (*MemoryStore)(nil)
	_ MetaStore          = (*MemoryStore)(nil)
	_ ContentRepository  = (*MemoryStore)(nil)
	_ UserRepository     = (*MemoryStore)(nil)
)

func (m *MemoryStore) SaveWorkflow(_ context.Context, wf *domain.Workflow) error {
	if wf.ID <= 0 {
		return domain.ErrInvalidWorkflowID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = cloneWorkflow(wf)
	return nil
}

// DeleteWorkflow removes a workflow, as an admin would.
func (m *MemoryStore) DeleteWorkflow(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, id)
}

func (m *MemoryStore) Query(_ context.Context, cond query.Condition) ([]*domain.Workflow, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Workflow
	for _, wf := range m.workflows {
		if query.Match(cond, wf) {
			out = append(out, cloneWorkflow(wf))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*domain.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneWorkflow(wf), nil
}

func (m *MemoryStore) Get(_ context.Context, scope MetaScope, id int64, key string) ([]string, error) {
	if m.GetMetaErr != nil {
		return nil, m.GetMetaErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if scope == ScopeWorkflow {
		if wf, ok := m.workflows[id]; ok {
			return append([]string(nil), wf.Meta[key]...), nil
		}
		return nil, nil
	}
	return append([]string(nil), m.meta[metaKey{scope, id, key}]...), nil
}

func (m *MemoryStore) Set(_ context.Context, scope MetaScope, id int64, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scope == ScopeWorkflow {
		wf, ok := m.workflows[id]
		if !ok {
			return domain.ErrNotFound
		}
		if len(values) == 0 {
			delete(wf.Meta, key)
		} else {
			wf.Meta[key] = append([]string(nil), values...)
		}
		wf.Decode()
		return nil
	}
	k := metaKey{scope, id, key}
	if len(values) == 0 {
		delete(m.meta, k)
		return nil
	}
	m.meta[k] = append([]string(nil), values...)
	return nil
}

func (m *MemoryStore) AddContent(c *domain.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.contents[c.ID] = &clone
}

func (m *MemoryStore) AddComment(c *domain.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.comments[c.ID] = &clone
}

func (m *MemoryStore) AddUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	clone.Groups = append([]string(nil), u.Groups...)
	m.users[u.ID] = &clone
}

func (m *MemoryStore) GetContent(_ context.Context, id int64) (*domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MemoryStore) GetComment(_ context.Context, id int64) (*domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MemoryStore) GroupMembers(_ context.Context, group string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, u := range m.users {
		for _, g := range u.Groups {
			if g == group {
				ids = append(ids, u.ID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func cloneWorkflow(wf *domain.Workflow) *domain.Workflow {
	clone := *wf
	if clone.Type == "" {
		clone.Type = domain.WorkflowType
	}
	clone.Meta = make(map[string][]string, len(wf.Meta))
	for k, v := range wf.Meta {
		clone.Meta[k] = append([]string(nil), v...)
	}
	clone.Decode()
	return &clone
}

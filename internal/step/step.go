// Package step defines the pluggable units a workflow is composed of and the
// ordered registry the engine iterates.
//
// A step declares what it can do by the interfaces it implements. Event and
// filter steps contribute query conditions, receiver steps contribute
// receiver records, channel steps deliver, content steps shape the message
// and action steps observe dispatch outcomes. New kinds are added by
// registering them; the engine never needs to change.
package step

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// Step is the common part of every step.
type Step interface {
	Name() string
}

// EventStep selects workflows by the kind of event being fired.
type EventStep interface {
	Step
	Handles(kind domain.EventKind) bool
	QueryConditions(ctx context.Context, ec *domain.EventContext) ([]query.Condition, error)
}

// FilterStep narrows the candidate workflows by event content.
type FilterStep interface {
	Step
	QueryConditions(ctx context.Context, ec *domain.EventContext) ([]query.Condition, error)
}

// ReceiverStep contributes receivers for a matched workflow. Steps that are
// not selected in the workflow's configuration return nothing.
type ReceiverStep interface {
	Step
	Receivers(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.ReceiverRecord, error)
}

// ChannelStep delivers a rendered notification. Name is the channel name
// receivers are bucketed under.
type ChannelStep interface {
	Step
	Deliver(ctx context.Context, n *domain.Notification) ([]domain.DeliveryResult, error)
}

// ContentStep transforms the base message of a workflow firing. Steps run
// in registration order, each receiving the previous step's output.
type ContentStep interface {
	Step
	Content(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext, msg domain.Message) (domain.Message, error)
}

// ActionStep observes dispatch outcomes.
type ActionStep interface {
	Step
	OnOutcome(ctx context.Context, o domain.Outcome)
}

// Registry holds the registered steps per kind, in registration order.
// A single value implementing several step interfaces is registered under
// each of them.
type Registry struct {
	mu        sync.RWMutex
	names     map[string]struct{}
	events    []EventStep
	filters   []FilterStep
	receivers []ReceiverStep
	channels  []ChannelStep
	contents  []ContentStep
	actions   []ActionStep
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds s under every step kind it implements. Names must be unique.
func (r *Registry) Register(s Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.names[name]; exists {
		return errors.Wrapf(domain.ErrDuplicateStep, "step %q", name)
	}

	registered := false
	// Event steps also satisfy FilterStep; keep them out of the filter list.
	if e, ok := s.(EventStep); ok {
		r.events = append(r.events, e)
		registered = true
	} else if f, ok := s.(FilterStep); ok {
		r.filters = append(r.filters, f)
		registered = true
	}
	if rs, ok := s.(ReceiverStep); ok {
		r.receivers = append(r.receivers, rs)
		registered = true
	}
	if c, ok := s.(ChannelStep); ok {
		r.channels = append(r.channels, c)
		registered = true
	}
	if c, ok := s.(ContentStep); ok {
		r.contents = append(r.contents, c)
		registered = true
	}
	if a, ok := s.(ActionStep); ok {
		r.actions = append(r.actions, a)
		registered = true
	}
	if !registered {
		return errors.Newf("step %q implements no step kind", name)
	}
	r.names[name] = struct{}{}
	return nil
}

// MustRegister is Register for wiring code where a failure is a bug.
func (r *Registry) MustRegister(steps ...Step) {
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Events() []EventStep {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventStep(nil), r.events...)
}

func (r *Registry) Filters() []FilterStep {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]FilterStep(nil), r.filters...)
}

func (r *Registry) Receivers() []ReceiverStep {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ReceiverStep(nil), r.receivers...)
}

func (r *Registry) Contents() []ContentStep {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ContentStep(nil), r.contents...)
}

func (r *Registry) Actions() []ActionStep {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ActionStep(nil), r.actions...)
}

// Channel returns the channel step registered under name.
func (r *Registry) Channel(name string) (ChannelStep, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.channels {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// ChannelNames lists the registered channels in registration order.
func (r *Registry) ChannelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.channels))
	for i, c := range r.channels {
		names[i] = c.Name()
	}
	return names
}

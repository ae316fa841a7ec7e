package step

import (
	"context"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// KindEvent selects workflows that opted into one event kind by storing
// "1" under domain.EventMetaKey(kind).
type KindEvent struct {
	name string
	kind domain.EventKind
}

// NewKindEvent returns the event step for kind.
func NewKindEvent(name string, kind domain.EventKind) *KindEvent {
	return &KindEvent{name: name, kind: kind}
}

func (e *KindEvent) Name() string { return e.name }

func (e *KindEvent) Handles(kind domain.EventKind) bool { return kind == e.kind }

func (e *KindEvent) QueryConditions(_ context.Context, ec *domain.EventContext) ([]query.Condition, error) {
	if !e.Handles(ec.Args.Kind) {
		return nil, nil
	}
	return []query.Condition{
		query.MetaEquals{Key: domain.EventMetaKey(e.kind), Value: "1"},
	}, nil
}

// DefaultEvents returns one event step per built-in event kind.
func DefaultEvents() []Step {
	return []Step{
		NewKindEvent("event_post_status", domain.EventStatusTransition),
		NewKindEvent("event_post_update", domain.EventContentUpdate),
		NewKindEvent("event_taxonomy_update", domain.EventTaxonomyUpdate),
		NewKindEvent("event_editorial_comment", domain.EventEditorialComment),
		NewKindEvent("event_before_publishing", domain.EventBeforePublishing),
	}
}

package domain

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// EventKind names a content-lifecycle event fired by the host.
type EventKind string

const (
	EventStatusTransition EventKind = "transition_post_status"
	EventContentUpdate    EventKind = "post_update"
	EventTaxonomyUpdate   EventKind = "taxonomy_update"
	EventEditorialComment EventKind = "editorial_comment"
	EventBeforePublishing EventKind = "before_publishing"
)

// KnownEventKinds lists the kinds shipped with the default event steps.
var KnownEventKinds = []EventKind{
	EventStatusTransition,
	EventContentUpdate,
	EventTaxonomyUpdate,
	EventEditorialComment,
	EventBeforePublishing,
}

func (k EventKind) IsKnown() bool {
	for _, known := range KnownEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// EventParams is the parameter bag carried by an event.
// Field order is fixed so the JSON encoding is deterministic.
type EventParams struct {
	PostID    int64   `json:"post_id,omitempty"`
	OldStatus string  `json:"old_status,omitempty"`
	NewStatus string  `json:"new_status,omitempty"`
	ActorID   int64   `json:"actor_id,omitempty"`
	CommentID int64   `json:"comment_id,omitempty"`
	Taxonomy  string  `json:"taxonomy,omitempty"`
	TermIDs   []int64 `json:"term_ids,omitempty"`
}

// EventArgs is the in-memory event value passed through the whole pipeline.
type EventArgs struct {
	Kind   EventKind   `json:"event"`
	Params EventParams `json:"params"`
}

func (a EventArgs) Validate() error {
	if a.Kind == "" {
		return ErrInvalidEvent
	}
	return nil
}

// Canonical returns the deterministic JSON encoding of the event.
// It is the payload stored with scheduled notifications and part of the
// scheduler's duplicate-suppression key.
func (a EventArgs) Canonical() ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, "encode event args")
	}
	return b, nil
}

// DecodeEventArgs is the inverse of Canonical.
func DecodeEventArgs(b []byte) (EventArgs, error) {
	var a EventArgs
	if err := json.Unmarshal(b, &a); err != nil {
		return EventArgs{}, errors.Wrap(err, "decode event args")
	}
	return a, nil
}

// EventContext is everything the steps of one firing may read: the event
// itself plus the host entities it references, loaded once up front.
// Content, Comment and Actor are nil when the event does not reference them
// or the host could not find them.
type EventContext struct {
	Args    EventArgs
	Content *Content
	Comment *Comment
	Actor   *User
}

package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/repository"
)

// Recipient is one resolved receiver on one channel.
type Recipient struct {
	Record domain.ReceiverRecord
	// User is the loaded host user for UserRef receivers.
	User    *domain.User
	Channel string
}

// ReceiverSet is the result of receiver resolution: recipients bucketed by
// channel, channels in first-seen order, at most one recipient per receiver
// key within a channel.
type ReceiverSet struct {
	channels  []string
	byChannel map[string][]Recipient
	seen      map[string]map[string]struct{}
}

func newReceiverSet() *ReceiverSet {
	return &ReceiverSet{
		byChannel: make(map[string][]Recipient),
		seen:      make(map[string]map[string]struct{}),
	}
}

func (s *ReceiverSet) add(r Recipient) bool {
	key := r.Record.Receiver.Key()
	seen, ok := s.seen[r.Channel]
	if !ok {
		seen = make(map[string]struct{})
		s.seen[r.Channel] = seen
		s.channels = append(s.channels, r.Channel)
	}
	if _, dup := seen[key]; dup {
		return false
	}
	seen[key] = struct{}{}
	s.byChannel[r.Channel] = append(s.byChannel[r.Channel], r)
	return true
}

// Channels lists the channels with at least one recipient.
func (s *ReceiverSet) Channels() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.channels...)
}

// Recipients returns the recipients on channel in resolution order.
func (s *ReceiverSet) Recipients(channel string) []Recipient {
	if s == nil {
		return nil
	}
	return s.byChannel[channel]
}

// Len returns the total number of recipients across channels.
func (s *ReceiverSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, rs := range s.byChannel {
		n += len(rs)
	}
	return n
}

// ByChannel returns the channel-keyed view.
func (s *ReceiverSet) ByChannel() domain.ChannelBucket {
	out := make(domain.ChannelBucket)
	if s == nil {
		return out
	}
	for _, ch := range s.channels {
		for _, r := range s.byChannel[ch] {
			out[ch] = append(out[ch], r.Record)
		}
	}
	return out
}

// ByGroup returns the same recipients keyed by receiver group, then channel.
func (s *ReceiverSet) ByGroup() map[string]domain.ChannelBucket {
	out := make(map[string]domain.ChannelBucket)
	if s == nil {
		return out
	}
	for _, ch := range s.channels {
		for _, r := range s.byChannel[ch] {
			bucket, ok := out[r.Record.Group]
			if !ok {
				bucket = make(domain.ChannelBucket)
				out[r.Record.Group] = bucket
			}
			bucket[ch] = append(bucket[ch], r.Record)
		}
	}
	return out
}

// ResolveReceivers collects the receivers of wf for ec from every receiver
// step in registration order. Records that cannot be resolved are skipped;
// the returned error reports them while the set still holds everything that
// did resolve.
func (e *Engine) ResolveReceivers(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) (*ReceiverSet, error) {
	set := newReceiverSet()
	var errs error

	for _, rs := range e.steps.Receivers() {
		records, err := rs.Receivers(ctx, wf, ec)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "receiver step %s", rs.Name()))
		}
		for _, rec := range records {
			r, ok, err := e.resolve(ctx, wf, ec, rec)
			if err != nil {
				errs = errors.CombineErrors(errs, err)
				continue
			}
			if ok {
				set.add(r)
			}
		}
	}
	return set, errs
}

// resolve turns one record into a recipient. ok is false when the record is
// skipped on purpose: no identifier, a malformed address, the acting user
// or a muted user.
func (e *Engine) resolve(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext, rec domain.ReceiverRecord) (Recipient, bool, error) {
	switch r := rec.Receiver.(type) {
	case domain.UserRef:
		if r.ID <= 0 {
			return Recipient{}, false, nil
		}
		if wf.Config.Receivers.SkipUser && ec.Args.Params.ActorID == r.ID {
			return Recipient{}, false, nil
		}
		user, err := e.users.GetUser(ctx, r.ID)
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Debug("receiver user not found", zap.Int64("user_id", r.ID), zap.Int64("workflow_id", wf.ID))
			return Recipient{}, false, nil
		}
		if err != nil {
			return Recipient{}, false, errors.Wrapf(err, "load user %d", r.ID)
		}
		channel, err := e.userChannel(ctx, wf.ID, r.ID, rec.Channel)
		if err != nil {
			return Recipient{}, false, err
		}
		if channel == domain.ChannelMute {
			return Recipient{}, false, nil
		}
		return Recipient{Record: rec, User: user, Channel: channel}, true, nil

	case domain.Address:
		if r.Address == "" {
			return Recipient{}, false, nil
		}
		channel := rec.Channel
		if channel == "" {
			channel = r.Channel
		}
		if channel == "" {
			channel = e.defaultChannel
		}
		if channel == domain.ChannelEmail && !domain.ValidEmail(r.Address) {
			e.logger.Debug("receiver address is not a valid email",
				zap.String("address", r.Address), zap.Int64("workflow_id", wf.ID))
			return Recipient{}, false, nil
		}
		return Recipient{Record: rec, Channel: channel}, true, nil
	}
	return Recipient{}, false, nil
}

// userChannel returns the user's stored channel for the workflow, falling back
// to the record's explicit channel and then the default channel.
func (e *Engine) userChannel(ctx context.Context, workflowID, userID int64, explicit string) (string, error) {
	values, err := e.meta.Get(ctx, repository.ScopeUser, userID, repository.ChannelPreferenceKey(workflowID))
	if err != nil {
		return "", errors.Wrapf(err, "load channel preference of user %d", userID)
	}
	for _, v := range values {
		if v != "" {
			return v, nil
		}
	}
	if explicit != "" {
		return explicit, nil
	}
	return e.defaultChannel, nil
}

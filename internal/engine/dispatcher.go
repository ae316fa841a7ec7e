package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/render"
)

// RenderContent builds the unexpanded message of a firing by running every
// content step in registration order. Both parts default to "".
func (e *Engine) RenderContent(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) (domain.Message, error) {
	var msg domain.Message
	for _, c := range e.steps.Contents() {
		next, err := c.Content(ctx, wf, ec, msg)
		if err != nil {
			return domain.Message{}, errors.Wrapf(err, "content step %s", c.Name())
		}
		msg = next
	}
	return msg, nil
}

// Deliver expands msg for every recipient and hands it to the recipient's
// channel, unless the same message already went to the same receiver on the
// same channel within the current DispatchContext.
func (e *Engine) Deliver(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext, set *ReceiverSet, msg domain.Message) []domain.Outcome {
	ctx, dc := ensureDispatchContext(ctx)
	var outcomes []domain.Outcome

	for _, channel := range set.Channels() {
		ch, ok := e.steps.Channel(channel)
		for _, r := range set.Recipients(channel) {
			scope := render.Scope{
				Workflow: wf,
				Event:    ec,
				Record:   r.Record,
				User:     r.User,
				Channel:  channel,
				Site:     e.site,
			}
			expanded := render.Expand(msg, scope)
			key := r.Record.Receiver.Key()
			o := domain.Outcome{
				WorkflowID: wf.ID,
				Event:      ec.Args.Kind,
				Channel:    channel,
				Receiver:   key,
				Signature:  Signature(expanded, channel, key),
			}

			if !ok {
				o.Kind = domain.OutcomeFailed
				o.Err = errors.Wrapf(domain.ErrUnknownChannel, "channel %q", channel)
				outcomes = append(outcomes, o)
				continue
			}
			if !dc.Register(o.Signature) {
				o.Kind = domain.OutcomeDuplicate
				outcomes = append(outcomes, o)
				continue
			}

			start := e.now()
			results, err := ch.Deliver(ctx, &domain.Notification{
				Workflow: wf,
				Event:    ec,
				Channel:  channel,
				Record:   r.Record,
				User:     r.User,
				Message:  expanded,
			})
			o.Latency = e.now().Sub(start)
			o.Kind = domain.OutcomeSent
			if err == nil {
				err = deliveryErrors(results)
			}
			if err != nil {
				o.Kind = domain.OutcomeFailed
				o.Err = err
				e.logger.Debug("delivery failed",
					zap.Int64("workflow_id", wf.ID),
					zap.String("channel", channel),
					zap.String("receiver", key),
					zap.Error(err),
				)
			}
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

func deliveryErrors(results []domain.DeliveryResult) error {
	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(r.Err, "deliver to %s", r.Address))
		}
	}
	return errs
}

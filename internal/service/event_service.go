package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/repository"
)

// MaxBatchSize bounds the number of events accepted in one batch.
const MaxBatchSize = 100

// EventEngine is the part of the engine the service drives.
type EventEngine interface {
	OnEvent(ctx context.Context, args domain.EventArgs) engine.Report
}

// ScheduledLister lists pending scheduled notifications.
type ScheduledLister interface {
	Scheduled(ctx context.Context) ([]domain.ScheduledNotification, error)
}

// EventObserver is told about every handled event. Optional.
type EventObserver interface {
	ObserveEvent(kind domain.EventKind, matched int, aborted bool)
}

// EventService sits between the HTTP handlers and the engine.
// Request-level rules (batch limits, one DispatchContext per request,
// channel preference validation) live here.
type EventService struct {
	engine    EventEngine
	scheduled ScheduledLister
	meta      repository.MetaStore
	users     repository.UserRepository
	observer  EventObserver
	logger    *zap.Logger
}

func NewEventService(
	eng EventEngine,
	scheduled ScheduledLister,
	meta repository.MetaStore,
	users repository.UserRepository,
	observer EventObserver,
	logger *zap.Logger,
) *EventService {
	return &EventService{
		engine: eng, scheduled: scheduled, meta: meta, users: users,
		observer: observer, logger: logger,
	}
}

// Publish hands one event to the engine. Only an invalid event is returned
// as an error; everything else the engine reports in the Report.
func (s *EventService) Publish(ctx context.Context, args domain.EventArgs) (engine.Report, error) {
	if err := args.Validate(); err != nil {
		return engine.Report{}, err
	}
	ctx = s.withDispatchContext(ctx)
	return s.fire(ctx, args), nil
}

// PublishBatch fires every event of the batch in order. The whole batch
// shares one DispatchContext, so a receiver gets an identical notification
// at most once per batch.
func (s *EventService) PublishBatch(ctx context.Context, events []domain.EventArgs) ([]engine.Report, error) {
	if len(events) == 0 {
		return nil, domain.ErrBatchEmpty
	}
	if len(events) > MaxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}
	for i, args := range events {
		if err := args.Validate(); err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
	}

	ctx = s.withDispatchContext(ctx)
	reports := make([]engine.Report, len(events))
	for i, args := range events {
		reports[i] = s.fire(ctx, args)
	}
	return reports, nil
}

func (s *EventService) fire(ctx context.Context, args domain.EventArgs) engine.Report {
	report := s.engine.OnEvent(ctx, args)
	if s.observer != nil {
		s.observer.ObserveEvent(args.Kind, len(report.Workflows), report.Err != nil)
	}
	return report
}

// withDispatchContext keeps a DispatchContext attached by middleware and
// adds one otherwise.
func (s *EventService) withDispatchContext(ctx context.Context) context.Context {
	if engine.DispatchContextFrom(ctx) != nil {
		return ctx
	}
	return engine.WithDispatchContext(ctx, engine.NewDispatchContext())
}

// Scheduled lists the pending scheduled notifications in run order.
func (s *EventService) Scheduled(ctx context.Context) ([]domain.ScheduledNotification, error) {
	if s.scheduled == nil {
		return nil, nil
	}
	return s.scheduled.Scheduled(ctx)
}

// SetChannelPreference stores the channel userID receives workflowID's
// notifications on. domain.ChannelMute silences the workflow for the user.
func (s *EventService) SetChannelPreference(ctx context.Context, userID, workflowID int64, channel string) error {
	if userID <= 0 {
		return domain.ErrInvalidUserID
	}
	if workflowID <= 0 {
		return domain.ErrInvalidWorkflowID
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return domain.ErrInvalidChannel
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := s.meta.Set(ctx, repository.ScopeUser, userID, repository.ChannelPreferenceKey(workflowID), channel); err != nil {
		return errors.Wrap(err, "store channel preference")
	}
	s.logger.Info("channel preference updated",
		zap.Int64("user_id", userID),
		zap.Int64("workflow_id", workflowID),
		zap.String("channel", channel),
	)
	return nil
}

// ClearChannelPreference removes the user's preference so the workflow's
// default channel applies again.
func (s *EventService) ClearChannelPreference(ctx context.Context, userID, workflowID int64) error {
	if userID <= 0 {
		return domain.ErrInvalidUserID
	}
	if workflowID <= 0 {
		return domain.ErrInvalidWorkflowID
	}
	if err := s.meta.Set(ctx, repository.ScopeUser, userID, repository.ChannelPreferenceKey(workflowID)); err != nil {
		return errors.Wrap(err, "clear channel preference")
	}
	return nil
}

// ChannelPreference returns the stored channel, or "" when none is set.
func (s *EventService) ChannelPreference(ctx context.Context, userID, workflowID int64) (string, error) {
	values, err := s.meta.Get(ctx, repository.ScopeUser, userID, repository.ChannelPreferenceKey(workflowID))
	if err != nil {
		return "", err
	}
	for _, v := range values {
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

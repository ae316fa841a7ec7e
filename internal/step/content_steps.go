package step

import (
	"context"

	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// TemplateContent seeds the message with the workflow's stored template.
type TemplateContent struct{}

func (TemplateContent) Name() string { return "content_template" }

func (TemplateContent) Content(_ context.Context, wf *domain.Workflow, _ *domain.EventContext, msg domain.Message) (domain.Message, error) {
	if wf.Config.Content.Subject != "" {
		msg.Subject = wf.Config.Content.Subject
	}
	if wf.Config.Content.Body != "" {
		msg.Body = wf.Config.Content.Body
	}
	return msg, nil
}

// LogAction writes one structured log line per dispatch outcome.
type LogAction struct {
	logger *zap.Logger
}

func NewLogAction(logger *zap.Logger) *LogAction {
	return &LogAction{logger: logger}
}

func (*LogAction) Name() string { return "action_log" }

func (a *LogAction) OnOutcome(_ context.Context, o domain.Outcome) {
	fields := []zap.Field{
		zap.Int64("workflow_id", o.WorkflowID),
		zap.String("event", string(o.Event)),
		zap.String("channel", o.Channel),
		zap.String("receiver", o.Receiver),
		zap.String("signature", o.Signature),
	}
	switch o.Kind {
	case domain.OutcomeSent:
		a.logger.Info("notification sent", append(fields, zap.Duration("latency", o.Latency))...)
	case domain.OutcomeDuplicate:
		a.logger.Debug("duplicate notification skipped", fields...)
	case domain.OutcomeFailed:
		a.logger.Warn("notification delivery failed", append(fields, zap.Error(o.Err))...)
	case domain.OutcomeScheduled:
		a.logger.Info("notification scheduled", fields...)
	}
}

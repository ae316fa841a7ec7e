package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogMailer writes mail to the log instead of sending it. Used when no
// relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, m Message) (*SendResponse, error) {
	id := uuid.New().String()
	l.logger.Info("mail",
		zap.String("message_id", id),
		zap.String("from", m.From),
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.Body)),
	)
	return &SendResponse{
		MessageID: id,
		Status:    "logged",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

var _ Mailer = (*LogMailer)(nil)

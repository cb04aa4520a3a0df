// Package mail sends account emails (activation, password reset).
package mail

import (
	"context"

	"github.com/dmitrijs2005/cloudra/internal/logging"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs the recipient and subject of each message instead of
// delivering it. Bodies carry one-time tokens and are not logged.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info(ctx, "mail queued", "to", msg.To, "subject", msg.Subject, "body_bytes", len(msg.Body))
	return nil
}

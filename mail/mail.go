// Package mail abstracts outbound email dispatch.
package mail

import (
	"context"
	"log/slog"
)

// Mailer sends one message. Implementations must return an error on
// delivery failure; callers treat a failed send as "not delivered" and do
// not advance their flows silently.
type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// LogMailer writes messages to the log instead of sending them. Used in
// development when SMTP is unconfigured, mirroring how the passcode used to
// land in the server console.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, textBody, _ string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not sent (smtp unconfigured)",
		"to", to,
		"subject", subject,
		"body", textBody,
	)
	return nil
}

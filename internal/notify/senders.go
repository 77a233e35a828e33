package notify

import (
	"context"
	"log/slog"
)

// LogSender simulates delivery by writing the message to the log. It
// satisfies both EmailSender and SMSSender.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "sender")}
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "simulated email", "to", to, "subject", subject, "body", body)
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.InfoContext(ctx, "simulated sms", "to", to, "body", body)
	return nil
}

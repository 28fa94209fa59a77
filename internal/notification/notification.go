package notification

import (
	"context"
	"log/slog"

	"github.com/marocdeals/marocdeals_api/internal/logging"
)

const (
	// KindVerificationCode carries a signup verification code.
	KindVerificationCode = "verification_code"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string // HTML
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
// Used in development when no SMTP host is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", logging.RedactEmail(message.Destination)),
		slog.String("subject", message.Subject),
		slog.String("body", message.Body),
	)
	return nil
}

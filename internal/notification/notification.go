package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDeletionConfirmation carries the link that confirms an account deletion.
	KindDeletionConfirmation = "deletion_confirmation"
)

// Message describes a transactional email.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
	HTML        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
// It is used in development when no mail provider is configured. Bodies carry
// confirmation links, so they are only logged when includeBody is set.
type LoggerNotifier struct {
	logger      *slog.Logger
	includeBody bool
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger, includeBody bool) *LoggerNotifier {
	return &LoggerNotifier{logger: logger, includeBody: includeBody}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("subject", message.Subject),
	}
	if n.includeBody {
		attrs = append(attrs, slog.String("body", message.Body))
	}
	n.logger.Info("notification", attrs...)
	return nil
}

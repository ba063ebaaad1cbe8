// Package notify delivers operator alerts to the registered channels
// (Telegram, Discord). Delivery is best effort: a channel failure is logged
// and never propagates into the trading cycle.
package notify

import (
	"context"
	"log/slog"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// alertTitles maps alert kinds to the channel message title.
var alertTitles = map[domain.AlertKind]string{
	domain.AlertInternalError:    "Internal error",
	domain.AlertOrderRejected:    "Order rejected",
	domain.AlertDealClosed:       "Deal closed",
	domain.AlertStateDeactivated: "Slot deactivated",
}

// Notifier fans alerts out to every registered sender.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. With no
// senders it degrades to log-only.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// SendAlert delivers an operator alert. Failures are logged, never returned:
// notification is an observability concern and must not stall trading.
func (n *Notifier) SendAlert(ctx context.Context, kind domain.AlertKind, text string) {
	title, ok := alertTitles[kind]
	if !ok {
		title = string(kind)
	}
	n.logger.WarnContext(ctx, "alert",
		slog.String("kind", string(kind)),
		slog.String("text", text),
	)
	n.dispatch(ctx, title, text)
}

// SendInfo delivers an informational message.
func (n *Notifier) SendInfo(ctx context.Context, text string) {
	n.logger.InfoContext(ctx, "notify", slog.String("text", text))
	n.dispatch(ctx, "Info", text)
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

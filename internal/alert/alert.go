// Package alert notifies operators about pipeline failures.
package alert

import (
	"context"
	"time"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

// Alert is one operator notification.
type Alert struct {
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	Time    time.Time `json:"timestamp"`
}

// Channel defines the interface for alert notification delivery.
type Channel interface {
	Send(ctx context.Context, a Alert) error
	Type() string
}

// Notifier sends alerts on a best-effort basis: delivery errors are logged and
// never returned. A Notifier without a channel skips alerting altogether.
type Notifier struct {
	channel Channel
	logger  *logging.Logger
	now     func() time.Time
}

// NewNotifier wraps channel; channel may be nil.
func NewNotifier(channel Channel, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{channel: channel, logger: logger, now: time.Now}
}

// Enabled reports whether alerts are delivered anywhere.
func (n *Notifier) Enabled() bool {
	return n != nil && n.channel != nil
}

// Notify attempts exactly one delivery and reports whether it succeeded.
func (n *Notifier) Notify(ctx context.Context, subject, message string) bool {
	if !n.Enabled() {
		return false
	}

	err := n.channel.Send(ctx, Alert{Subject: subject, Message: message, Time: n.now().UTC()})
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to publish alert",
			"subject", subject,
			logging.Backend(n.channel.Type()),
			logging.Error(err),
		)
		return false
	}
	return true
}

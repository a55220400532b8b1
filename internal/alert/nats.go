package alert

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is the publish capability of the messaging client.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSChannel publishes alerts as JSON on a NATS subject.
type NATSChannel struct {
	pub     Publisher
	subject string
}

func NewNATSChannel(pub Publisher, subject string) *NATSChannel {
	return &NATSChannel{pub: pub, subject: subject}
}

func (n *NATSChannel) Type() string {
	return "nats"
}

func (n *NATSChannel) Send(ctx context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := n.pub.Publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	return nil
}

package simulator

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ecomonitor/ecomonitor-stack/internal/config"
	"github.com/ecomonitor/ecomonitor-stack/internal/messaging"
	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// NewMQTTClient connects to the broker in cfg.
func NewMQTTClient(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return c, nil
}

// MQTTPublisher publishes readings on "<prefix>/<kind>".
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, qos: 1}
}

func (m *MQTTPublisher) Name() string { return "mqtt" }

func (m *MQTTPublisher) Publish(ctx context.Context, kind model.SensorType, payload []byte) error {
	token := m.client.Publish(messaging.TelemetryTopic(m.prefix, string(kind)), m.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NATSPublisher publishes readings on "<prefix>.<kind>".
type NATSPublisher struct {
	pub    messaging.Publisher
	prefix string
}

func NewNATSPublisher(pub messaging.Publisher, prefix string) *NATSPublisher {
	return &NATSPublisher{pub: pub, prefix: prefix}
}

func (n *NATSPublisher) Name() string { return "nats" }

func (n *NATSPublisher) Publish(ctx context.Context, kind model.SensorType, payload []byte) error {
	return n.pub.Publish(ctx, messaging.TelemetrySubject(n.prefix, string(kind)), payload)
}

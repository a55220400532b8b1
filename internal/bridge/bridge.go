// Package bridge stands in for the device transport's storage rule: every
// telemetry message is written to the object store and announced on the
// notification stream.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/messaging"
	"github.com/ecomonitor/ecomonitor-stack/internal/objectstore"
)

const unknownDevice = "unknown-device"

// Notifier publishes a notification and waits for the stream to persist it.
type Notifier interface {
	PublishSync(ctx context.Context, msg *messaging.Message) (*jetstream.PubAck, error)
}

type Config struct {
	Bucket          string
	EventsSubject   string
	TelemetryPrefix string
}

type Bridge struct {
	objects  objectstore.Store
	notifier Notifier
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
	newID    func() string
}

func New(objects objectstore.Store, notifier Notifier, cfg Config, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{
		objects:  objects,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// ObjectKey returns readings/<kind>/<device>/<unix_nanos>-<id>.json.
func ObjectKey(kind, deviceID string, at time.Time, id string) string {
	return "readings/" + kind + "/" + deviceID + "/" + strconv.FormatInt(at.UnixNano(), 10) + "-" + id + ".json"
}

// Handle stores one telemetry payload and publishes its object-created
// notification. Payloads are stored as received, malformed ones included.
func (b *Bridge) Handle(ctx context.Context, msg *messaging.Message) error {
	kind := messaging.KindFromSubject(msg.Subject)
	if kind == "" {
		return fmt.Errorf("telemetry subject %q has no kind", msg.Subject)
	}

	id := b.newID()
	at := b.now()
	key := ObjectKey(kind, deviceOf(msg.Data), at, id)

	if err := b.objects.Put(ctx, b.cfg.Bucket, key, msg.Data); err != nil {
		return fmt.Errorf("store %s/%s: %w", b.cfg.Bucket, key, err)
	}

	notification, err := json.Marshal(event.ObjectCreated(b.cfg.Bucket, key, int64(len(msg.Data)), at))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ack, err := b.notifier.PublishSync(ctx, messaging.NewMessage(b.cfg.EventsSubject, notification,
		messaging.WithHeader(messaging.HeaderMsgID, id)))
	if err != nil {
		return fmt.Errorf("publish notification for %s: %w", key, err)
	}

	b.logger.InfoContext(ctx, "telemetry stored",
		logging.Bucket(b.cfg.Bucket),
		logging.Key(key),
		logging.SensorType(kind),
		"stream", ack.Stream,
		"sequence", ack.Sequence,
	)
	return nil
}

// ListenNATS joins the bridge queue group on every telemetry subject.
func (b *Bridge) ListenNATS(sub messaging.Subscriber) (messaging.Subscription, error) {
	subject := messaging.TelemetryWildcard(b.cfg.TelemetryPrefix)
	s, err := sub.QueueSubscribe(subject, messaging.QueueBridgeWorkers, b.Handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.logger.Info("bridge listening", "transport", "nats", "subject", subject)
	return s, nil
}

// ListenMQTT subscribes to every telemetry topic on the broker. Messages are
// handled with ctx until the caller unsubscribes.
func (b *Bridge) ListenMQTT(ctx context.Context, client mqtt.Client, topicPrefix string) error {
	topic := topicPrefix + "/+"
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		msg := &messaging.Message{Subject: m.Topic(), Data: m.Payload(), Timestamp: b.now()}
		if err := b.Handle(ctx, msg); err != nil {
			b.logger.ErrorContext(ctx, "failed to bridge telemetry", "topic", m.Topic(), logging.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	b.logger.Info("bridge listening", "transport", "mqtt", "topic", topic)
	return nil
}

func deviceOf(payload []byte) string {
	var probe struct {
		DeviceID any `json:"device_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&probe); err != nil {
		return unknownDevice
	}
	switch v := probe.DeviceID.(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		return v.String()
	}
	return unknownDevice
}

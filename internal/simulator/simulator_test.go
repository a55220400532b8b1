package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/messaging"
	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	kinds    []model.SensorType
	payloads [][]byte
}

func (r *recordingPublisher) Name() string { return "recording" }

func (r *recordingPublisher) Publish(_ context.Context, kind model.SensorType, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.kinds = append(r.kinds, kind)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func mustKind(t *testing.T, name string) Kind {
	t.Helper()
	k, err := KindFor(name)
	require.NoError(t, err)
	return k
}

func TestClassify(t *testing.T) {
	tests := []struct {
		kind  string
		value float64
		want  string
	}{
		{"temperature", 20.0, "cool"},
		{"temperature", 22.0, "cool"},
		{"temperature", 22.01, "comfortable"},
		{"temperature", 25.0, "comfortable"},
		{"temperature", 25.5, "warm"},
		{"humidity", 39.99, "dry"},
		{"humidity", 40.0, "comfortable"},
		{"humidity", 50.0, "comfortable"},
		{"humidity", 50.01, "humid"},
		{"aqi", 0, "good"},
		{"aqi", 50, "good"},
		{"aqi", 51, "moderate"},
		{"aqi", 100, "moderate"},
		{"aqi", 101, "unhealthy_for_sensitive_groups"},
		{"co2", 600, "excellent"},
		{"co2", 601, "good"},
		{"co2", 800, "good"},
		{"co2", 1000, "fair"},
		{"co2", 1001, "poor"},
	}

	for _, tt := range tests {
		k := mustKind(t, tt.kind)
		assert.Equal(t, tt.want, k.Classifier.Classify(tt.value), "%s %v", tt.kind, tt.value)
	}
}

func TestKindFor_Unknown(t *testing.T) {
	_, err := KindFor("pressure")
	assert.Error(t, err)
	assert.Len(t, Kinds(), 4)
}

func TestProducer_NextWithinRange(t *testing.T) {
	ranges := map[string][2]float64{
		"temperature": {20, 27},
		"humidity":    {30, 60},
		"aqi":         {0, 150},
		"co2":         {400, 1200},
	}

	for name, bounds := range ranges {
		k := mustKind(t, name)
		p := NewProducer(k, &recordingPublisher{}, WithSeed(42))
		for i := 0; i < 200; i++ {
			r := p.Next()
			v, err := r.Value.Float64()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, bounds[0], name)
			assert.LessOrEqual(t, v, bounds[1], name)
			assert.Equal(t, k.Classifier.Classify(v), r.Category)
			assert.Equal(t, k.DeviceID, r.DeviceID)
			assert.Equal(t, name, r.Type)
			assert.Equal(t, name, r.SensorType)
		}
	}
}

func TestProducer_IntegerKindsHaveNoFraction(t *testing.T) {
	p := NewProducer(mustKind(t, "co2"), &recordingPublisher{}, WithSeed(7))
	for i := 0; i < 50; i++ {
		_, err := p.Next().Value.Int64()
		require.NoError(t, err)
	}
}

func TestProducer_SeedIsReproducible(t *testing.T) {
	k := mustKind(t, "temperature")
	a := NewProducer(k, &recordingPublisher{}, WithSeed(99))
	b := NewProducer(k, &recordingPublisher{}, WithSeed(99))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next().Value, b.Next().Value)
	}
}

func TestProducer_Emit(t *testing.T) {
	pub := &recordingPublisher{}
	now := time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC)
	p := NewProducer(mustKind(t, "humidity"), pub,
		WithSeed(1),
		WithDeviceID("humidity-lab"),
		WithClock(func() time.Time { return now }),
		WithLogger(logging.Discard()),
	)

	reading, err := p.Emit(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, model.SensorHumidity, pub.kinds[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "humidity-lab", decoded["device_id"])
	assert.Equal(t, "humidity", decoded["sensor_type"])
	assert.Equal(t, float64(now.Unix()), decoded["timestamp"])
	assert.Equal(t, reading.Category, decoded["category"])
}

func TestProducer_EmitPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := NewProducer(mustKind(t, "aqi"), pub, WithLogger(logging.Discard()))

	_, err := p.Emit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "recording")
}

func TestProducer_RunCount(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(mustKind(t, "co2"), pub, WithLogger(logging.Discard()))

	require.NoError(t, p.Run(context.Background(), time.Millisecond, 3))
	assert.Equal(t, 3, pub.count())
}

func TestProducer_RunRejectsNonPositiveInterval(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(mustKind(t, "co2"), pub, WithLogger(logging.Discard()))

	for _, interval := range []time.Duration{0, -time.Second} {
		err := p.Run(context.Background(), interval, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interval must be positive")
	}
	assert.Equal(t, 0, pub.count())
}

func TestProducer_RunStopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("offline")}
	p := NewProducer(mustKind(t, "co2"), pub, WithLogger(logging.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Millisecond, 0) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type fakeMQTT struct {
	mqtt.Client
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (f *fakeMQTT) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.qos = qos
	f.payload = payload.([]byte)
	return newDoneToken(f.err)
}

func TestMQTTPublisher(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewMQTTPublisher(client, "sensors")

	require.NoError(t, pub.Publish(context.Background(), model.SensorCO2, []byte(`{"value":500}`)))
	assert.Equal(t, "sensors/co2", client.topic)
	assert.Equal(t, byte(1), client.qos)
	assert.Equal(t, "mqtt", pub.Name())

	client.err = errors.New("not connected")
	assert.EqualError(t, pub.Publish(context.Background(), model.SensorCO2, nil), "not connected")
}

type capturePublisher struct {
	subject string
	data    []byte
}

func (c *capturePublisher) Publish(_ context.Context, subject string, data []byte) error {
	c.subject = subject
	c.data = data
	return nil
}

func (c *capturePublisher) PublishMsg(_ context.Context, msg *messaging.Message) error {
	c.subject = msg.Subject
	c.data = msg.Data
	return nil
}

func TestNATSPublisher(t *testing.T) {
	capture := &capturePublisher{}
	pub := NewNATSPublisher(capture, "sensors")

	require.NoError(t, pub.Publish(context.Background(), model.SensorAQI, []byte(`{}`)))
	assert.Equal(t, "sensors.aqi", capture.subject)
	assert.Equal(t, "nats", pub.Name())
}

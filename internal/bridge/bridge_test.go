package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/messaging"
	"github.com/ecomonitor/ecomonitor-stack/internal/objectstore"
)

type fakeNotifier struct {
	msgs []*messaging.Message
	err  error
}

func (f *fakeNotifier) PublishSync(_ context.Context, msg *messaging.Message) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: "OBJECT_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

type failingObjects struct{ *objectstore.MemoryStore }

func (failingObjects) Put(context.Context, string, string, []byte) error {
	return errors.New("bucket unavailable")
}

var bridgeClock = time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC)

func newTestBridge(objects objectstore.Store, notifier Notifier) *Bridge {
	b := New(objects, notifier, Config{
		Bucket:          "raw",
		EventsSubject:   "objects.created",
		TelemetryPrefix: "sensors",
	}, logging.Discard())
	b.now = func() time.Time { return bridgeClock }
	b.newID = func() string { return "id-1" }
	return b
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "readings/co2/co2-001/1718098200000000000-abc.json",
		ObjectKey("co2", "co2-001", bridgeClock, "abc"))
}

func TestHandle_StoresAndNotifies(t *testing.T) {
	objects := objectstore.NewMemoryStore()
	notifier := &fakeNotifier{}
	b := newTestBridge(objects, notifier)

	payload := []byte(`{"device_id":"temp 001","type":"temperature","value":22.5}`)
	require.NoError(t, b.Handle(context.Background(), &messaging.Message{Subject: "sensors.temperature", Data: payload}))

	key := "readings/temperature/temp 001/1718098200000000000-id-1.json"
	stored, err := objects.Get(context.Background(), "raw", key)
	require.NoError(t, err)
	assert.Equal(t, payload, stored)

	require.Len(t, notifier.msgs, 1)
	msg := notifier.msgs[0]
	assert.Equal(t, "objects.created", msg.Subject)
	assert.Equal(t, "id-1", msg.Header(messaging.HeaderMsgID))

	evt, err := event.Decode(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, "readings/temperature/temp+001/1718098200000000000-id-1.json", evt.Records[0].S3.Object.Key)
	assert.Equal(t, int64(len(payload)), evt.Records[0].S3.Object.Size)

	loc, err := event.Locate(evt)
	require.NoError(t, err)
	assert.Equal(t, event.Location{Bucket: "raw", Key: key}, loc)
}

func TestHandle_MalformedPayloadStillStored(t *testing.T) {
	objects := objectstore.NewMemoryStore()
	notifier := &fakeNotifier{}
	b := newTestBridge(objects, notifier)

	require.NoError(t, b.Handle(context.Background(), &messaging.Message{Subject: "sensors/humidity", Data: []byte("{not json")}))
	assert.Equal(t, []string{"readings/humidity/unknown-device/1718098200000000000-id-1.json"}, objects.Keys("raw"))
	assert.Len(t, notifier.msgs, 1)
}

func TestHandle_StoreFailureSkipsNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	b := newTestBridge(failingObjects{objectstore.NewMemoryStore()}, notifier)

	err := b.Handle(context.Background(), &messaging.Message{Subject: "sensors.aqi", Data: []byte(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Empty(t, notifier.msgs)
}

func TestHandle_NotifyFailure(t *testing.T) {
	b := newTestBridge(objectstore.NewMemoryStore(), &fakeNotifier{err: errors.New("no responders")})

	err := b.Handle(context.Background(), &messaging.Message{Subject: "sensors.aqi", Data: []byte(`{"device_id":"aqi-001"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
}

func TestHandle_EmptyKind(t *testing.T) {
	b := newTestBridge(objectstore.NewMemoryStore(), &fakeNotifier{})
	assert.Error(t, b.Handle(context.Background(), &messaging.Message{Subject: "sensors."}))
}

func TestDeviceOf(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"device_id":"co2-001"}`, "co2-001"},
		{`{"device_id":17}`, "17"},
		{`{"device_id":""}`, unknownDevice},
		{`{"value":1}`, unknownDevice},
		{`[1,2]`, unknownDevice},
		{``, unknownDevice},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, deviceOf([]byte(tt.payload)), tt.payload)
	}
}

type fakeSubscriber struct {
	subject string
	queue   string
	handler messaging.MessageHandler
}

func (f *fakeSubscriber) Subscribe(string, messaging.MessageHandler) (messaging.Subscription, error) {
	return nil, errors.New("unexpected plain subscribe")
}

func (f *fakeSubscriber) QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	f.subject, f.queue, f.handler = subject, queue, handler
	return nil, nil
}

func TestListenNATS(t *testing.T) {
	objects := objectstore.NewMemoryStore()
	b := newTestBridge(objects, &fakeNotifier{})
	sub := &fakeSubscriber{}

	_, err := b.ListenNATS(sub)
	require.NoError(t, err)
	assert.Equal(t, "sensors.*", sub.subject)
	assert.Equal(t, messaging.QueueBridgeWorkers, sub.queue)

	require.NoError(t, sub.handler(context.Background(), &messaging.Message{Subject: "sensors.co2", Data: []byte(`{"device_id":"co2-001"}`)}))
	assert.Len(t, objects.Keys("raw"), 1)
}

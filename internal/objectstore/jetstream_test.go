package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	jetstream.ObjectStore
	objects map[string][]byte
}

func (f *fakeObjectStore) GetBytes(_ context.Context, name string, _ ...jetstream.GetObjectOpt) ([]byte, error) {
	data, ok := f.objects[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) PutBytes(_ context.Context, name string, data []byte) (*jetstream.ObjectInfo, error) {
	f.objects[name] = data
	return &jetstream.ObjectInfo{}, nil
}

// fakeJetStream serves "raw" immediately and blocks lookups of any other
// bucket until release is closed.
type fakeJetStream struct {
	jetstream.JetStream
	raw     *fakeObjectStore
	release chan struct{}
	opened  chan string
}

func (f *fakeJetStream) CreateOrUpdateObjectStore(_ context.Context, _ jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error) {
	return f.raw, nil
}

func (f *fakeJetStream) ObjectStore(ctx context.Context, bucket string) (jetstream.ObjectStore, error) {
	if bucket == "raw" {
		return f.raw, nil
	}
	f.opened <- bucket
	select {
	case <-f.release:
		return &fakeObjectStore{objects: map[string][]byte{}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{
		raw:     &fakeObjectStore{objects: map[string][]byte{}},
		release: make(chan struct{}),
		opened:  make(chan string, 1),
	}
}

func TestJetStreamStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s := NewJetStreamStore(newFakeJetStream())
	require.NoError(t, s.EnsureBucket(ctx, "raw"))

	_, err := s.Get(ctx, "raw", "missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, s.Put(ctx, "raw", "a.json", []byte(`{"v":1}`)))
	data, err := s.Get(ctx, "raw", "a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))
}

func TestJetStreamStore_SlowBucketLookupDoesNotBlockCachedBuckets(t *testing.T) {
	ctx := context.Background()
	js := newFakeJetStream()
	s := NewJetStreamStore(js)
	require.NoError(t, s.EnsureBucket(ctx, "raw"))
	require.NoError(t, s.Put(ctx, "raw", "a.json", []byte(`{}`)))

	slow := make(chan error, 1)
	go func() { slow <- s.Put(ctx, "archive", "b.json", []byte(`{}`)) }()
	require.Equal(t, "archive", <-js.opened)

	done := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx, "raw", "a.json")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Get on a cached bucket waited for another bucket's lookup")
	}

	close(js.release)
	require.NoError(t, <-slow)
}

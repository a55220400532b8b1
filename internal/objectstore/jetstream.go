package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamStore keeps objects in NATS JetStream object store buckets.
type JetStreamStore struct {
	js jetstream.JetStream

	mu      sync.RWMutex
	buckets map[string]jetstream.ObjectStore
}

func NewJetStreamStore(js jetstream.JetStream) *JetStreamStore {
	return &JetStreamStore{js: js, buckets: make(map[string]jetstream.ObjectStore)}
}

func (s *JetStreamStore) Type() string { return "jetstream" }

// EnsureBucket creates the bucket if it does not exist yet.
func (s *JetStreamStore) EnsureBucket(ctx context.Context, bucket string) error {
	obs, err := s.js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "EcoMonitor raw sensor readings",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create object store %s: %w", bucket, err)
	}

	s.mu.Lock()
	s.buckets[bucket] = obs
	s.mu.Unlock()
	return nil
}

func (s *JetStreamStore) bucket(ctx context.Context, name string) (jetstream.ObjectStore, error) {
	s.mu.RLock()
	obs, ok := s.buckets[name]
	s.mu.RUnlock()
	if ok {
		return obs, nil
	}

	obs, err := s.js.ObjectStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open object store %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.buckets[name]; ok {
		return cached, nil
	}
	s.buckets[name] = obs
	return obs, nil
}

func (s *JetStreamStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obs, err := s.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}
	data, err := obs.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *JetStreamStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	obs, err := s.bucket(ctx, bucket)
	if err != nil {
		return err
	}
	if _, err := obs.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

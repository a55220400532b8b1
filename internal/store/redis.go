package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// maxTxRetries bounds optimistic retries when a watched reading changes mid-put.
const maxTxRetries = 3

// RedisStore keeps each record as a hash of JSON-encoded attribute values and
// indexes it in a per-date set.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore parses addr as a redis:// URL or a plain host:port.
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	if password != "" {
		opt.Password = password
	}
	if db != 0 {
		opt.DB = db
	}
	return NewRedisStoreWithClient(redis.NewClient(opt), prefix), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) readingKey(deviceID, timestamp string) string {
	return fmt.Sprintf("%sreading:%s:%s", s.prefix, deviceID, timestamp)
}

func (s *RedisStore) dateKey(date string) string {
	return fmt.Sprintf("%sreadings:date:%s", s.prefix, date)
}

func (s *RedisStore) Put(ctx context.Context, rec model.CanonicalRecord) error {
	if err := checkKeys(rec); err != nil {
		return err
	}

	item := rec.Item()
	fields := make(map[string]any, len(item))
	for k, v := range item {
		enc, err := encodeValue(v)
		if err != nil {
			return &ValidationError{Reason: "attribute " + k + " is not encodable", Err: err}
		}
		fields[k] = enc
	}

	key := s.readingKey(rec.DeviceID, rec.Timestamp)
	member := rec.DeviceID + ":" + rec.Timestamp
	replace := func(tx *redis.Tx) error {
		prevDate, err := s.storedDate(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prevDate != "" && prevDate != rec.ReadingDate {
				pipe.SRem(ctx, s.dateKey(prevDate), member)
			}
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fields)
			pipe.SAdd(ctx, s.dateKey(rec.ReadingDate), member)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.client.Watch(ctx, replace, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}
	return nil
}

// storedDate returns the reading_date of the record already held at key, or "".
func (s *RedisStore) storedDate(ctx context.Context, tx *redis.Tx, key string) (string, error) {
	raw, err := tx.HGet(ctx, key, model.FieldReadingDate).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	v, err := decodeValue(raw)
	if err != nil {
		return "", nil
	}
	date, _ := v.(string)
	return date, nil
}

func (s *RedisStore) Get(ctx context.Context, deviceID, timestamp string) (model.CanonicalRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.readingKey(deviceID, timestamp)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.CanonicalRecord{}, fmt.Errorf("failed to get reading: %w", err)
	}
	if len(fields) == 0 {
		return model.CanonicalRecord{}, ErrNotFound
	}

	item := make(map[string]any, len(fields))
	for k, raw := range fields {
		v, err := decodeValue(raw)
		if err != nil {
			return model.CanonicalRecord{}, fmt.Errorf("failed to decode attribute %s: %w", k, err)
		}
		item[k] = v
	}
	return model.RecordFromItem(item), nil
}

// ReadingsOn lists "<device_id>:<timestamp>" members recorded for date.
func (s *RedisStore) ReadingsOn(ctx context.Context, date string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.dateKey(date)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list readings for %s: %w", date, err)
	}
	return members, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

func testRecord() model.CanonicalRecord {
	return model.RecordFromItem(map[string]any{
		"device_id":    "humidity_sensor_zoneB",
		"timestamp":    "req-123",
		"reading_date": "2024-06-11",
		"sensor_type":  "humidity",
		"humidity":     json.Number("91.23"),
		"calibrated":   true,
		"notes":        nil,
		"location":     map[string]any{"floor": json.Number("3"), "room": "lab"},
		"history":      []any{json.Number("90.1"), json.Number("91.23")},
	})
}

func TestValidationError_Is(t *testing.T) {
	cause := errors.New("boom")
	err := error(&ValidationError{Reason: "bad key", Err: cause})

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad key")
	assert.NotErrorIs(t, errors.New("other"), ErrValidation)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := testRecord()

	require.NoError(t, s.Put(ctx, rec))
	got, err := s.Get(ctx, rec.DeviceID, rec.Timestamp)
	require.NoError(t, err)

	assert.Equal(t, rec.Item(), got.Item())
	assert.Equal(t, json.Number("91.23"), got.Fields["humidity"])
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "nope", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReplacesExistingKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := testRecord()
	require.NoError(t, s.Put(ctx, rec))

	rec.Fields["humidity"] = json.Number("50")
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, rec.DeviceID, rec.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, json.Number("50"), got.Fields["humidity"])
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_RejectsEmptyKeys(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		ts       string
	}{
		{"empty device id", "", "req-1"},
		{"empty timestamp", "dev-1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord()
			rec.DeviceID = tt.deviceID
			rec.Timestamp = tt.ts

			err := NewMemoryStore().Put(context.Background(), rec)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPayload_DropsStringColumns(t *testing.T) {
	p := payload(testRecord())

	assert.NotContains(t, p, "device_id")
	assert.NotContains(t, p, "timestamp")
	assert.NotContains(t, p, "reading_date")
	assert.Equal(t, "humidity", p["sensor_type"])
	assert.Equal(t, json.Number("91.23"), p["humidity"])
}

func TestEncodeDecodeValue(t *testing.T) {
	for _, v := range []any{"a<b", json.Number("1.50"), true, nil, map[string]any{"k": "v"}} {
		enc, err := encodeValue(v)
		require.NoError(t, err)
		got, err := decodeValue(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

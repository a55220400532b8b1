package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensorType(t *testing.T) {
	got, err := ParseSensorType("co2")
	require.NoError(t, err)
	assert.Equal(t, SensorCO2, got)

	_, err = ParseSensorType("pressure")
	assert.Error(t, err)
}

func TestCanonicalRecord_MarshalKeepsDecimalLiteral(t *testing.T) {
	rec := CanonicalRecord{
		DeviceID:    "temp-001",
		Timestamp:   "1718000000",
		ReadingDate: "2024-06-10",
		SensorType:  "temperature",
		Fields: map[string]any{
			"value":     json.Number("91.23"),
			"device_id": "temp-001",
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":91.23`)
	assert.Contains(t, string(data), `"reading_date":"2024-06-10"`)
}

func TestCanonicalRecord_Attributes(t *testing.T) {
	rec := RecordFromItem(map[string]any{
		"device_id":    "d",
		"timestamp":    "t",
		"reading_date": "2024-01-01",
		"sensor_type":  "aqi",
		"value":        json.Number("42"),
	})

	assert.Equal(t, "d", rec.DeviceID)
	assert.Equal(t, "aqi", rec.SensorType)
	assert.Equal(t, map[string]any{"value": json.Number("42")}, rec.Attributes())
	assert.Equal(t, []string{"device_id", "reading_date", "sensor_type", "timestamp", "value"}, rec.FieldNames())
}
